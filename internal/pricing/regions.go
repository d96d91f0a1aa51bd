package pricing

// regionNames maps region codes to the location names used by the AWS price
// list.
var regionNames = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"us-gov-east-1":  "AWS GovCloud (US-East)",
	"us-gov-west-1":  "AWS GovCloud (US-West)",
	"af-south-1":     "Africa (Cape Town)",
	"ap-east-1":      "Asia Pacific (Hong Kong)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"ap-northeast-2": "Asia Pacific (Seoul)",
	"ap-northeast-3": "Asia Pacific (Osaka)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ca-central-1":   "Canada (Central)",
	"cn-north-1":     "China (Beijing)",
	"cn-northwest-1": "China (Ningxia)",
	"eu-central-1":   "EU (Frankfurt)",
	"eu-north-1":     "EU (Stockholm)",
	"eu-south-1":     "EU (Milan)",
	"eu-west-1":      "EU (Ireland)",
	"eu-west-2":      "EU (London)",
	"eu-west-3":      "EU (Paris)",
	"me-south-1":     "Middle East (Bahrain)",
	"sa-east-1":      "South America (Sao Paulo)",
}

var regionCodes = func() map[string]string {
	m := make(map[string]string, len(regionNames))
	for code, name := range regionNames {
		m[name] = code
	}
	return m
}()

// LocationName returns the price-list location of a region code. Unknown
// codes are returned unchanged.
func LocationName(region string) string {
	if name, ok := regionNames[region]; ok {
		return name
	}
	return region
}

// RegionCode returns the region code of a price-list location. Unknown
// locations are returned unchanged so catalogs keyed by code also load.
func RegionCode(location string) string {
	if code, ok := regionCodes[location]; ok {
		return code
	}
	return location
}

// tenancyNames maps EC2 tenancy values to price-list tenancy names.
var tenancyNames = map[string]string{
	"default":   "Shared",
	"dedicated": "Dedicated",
	"host":      "Host",
}

// TenancyName returns the price-list tenancy for an EC2 tenancy value.
func TenancyName(tenancy string) string {
	if name, ok := tenancyNames[tenancy]; ok {
		return name
	}
	return tenancy
}

// TenancyCode is the inverse of TenancyName.
func TenancyCode(name string) string {
	for code, n := range tenancyNames {
		if n == name {
			return code
		}
	}
	return name
}
