package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Platform is the canonical operating system / software family an instance is
// billed under. Provider-specific variants (VPC-qualified product names, SQL
// Server editions, casing) collapse onto one of these values.
type Platform string

const (
	PlatformLinux   Platform = "Linux"
	PlatformWindows Platform = "Windows"
	PlatformRHEL    Platform = "RHEL"
	PlatformSUSE    Platform = "SUSE"
)

// vpcSuffix marks EC2 product descriptions of VPC-scoped reservations.
const vpcSuffix = " (Amazon VPC)"

// ProductDescription returns the EC2 product description used to query
// reservation offerings for this platform.
func (p Platform) ProductDescription(vpc bool) string {
	var desc string
	switch p {
	case PlatformWindows:
		desc = "Windows"
	case PlatformRHEL:
		desc = "Red Hat Enterprise Linux"
	case PlatformSUSE:
		desc = "SUSE Linux"
	default:
		desc = "Linux/UNIX"
	}
	if vpc {
		desc += vpcSuffix
	}
	return desc
}

// Tenancy values as reported by EC2.
const (
	TenancyDefault   = "default"
	TenancyDedicated = "dedicated"
	TenancyHost      = "host"
)

// Configuration identifies one kind of capacity: instance size, where it is
// scoped, its tenancy, platform family and whether it runs inside a VPC.
// It is a comparable value and is used directly as a map key.
type Configuration struct {
	Size     string   `json:"instance_type"`
	Locality string   `json:"availability_zone"` // zone, or region for regional reservations
	Tenancy  string   `json:"tenancy"`
	Platform Platform `json:"product"`
	VPC      bool     `json:"vpc"`
}

// Region returns the region the configuration's locality belongs to.
func (c Configuration) Region() string {
	return RegionOf(c.Locality)
}

// IsRegional reports whether the locality is a region rather than a zone.
func (c Configuration) IsRegional() bool {
	return IsRegion(c.Locality)
}

// String renders the configuration for logs and error messages.
func (c Configuration) String() string {
	net := "classic"
	if c.VPC {
		net = "vpc"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.Size, c.Locality, c.Tenancy, c.Platform, net)
}

// regionRe matches the region prefix of a locality: "us-east-1",
// "us-gov-west-1", "cn-north-1". Anything after it is a zone suffix, either a
// single letter ("us-east-1a") or a local zone ("us-east-1-bos-1a").
var regionRe = regexp.MustCompile(`^([a-z]{2}(?:-gov|-iso[a-z]?)?-[a-z]+-\d+)(.*)$`)

// zoneSuffixRe validates what may follow the region prefix in a zone name.
var zoneSuffixRe = regexp.MustCompile(`^(?:[a-z]|-[a-z]+-\d+[a-z])$`)

// ParseLocality splits a locality into its region and reports whether it names
// a zone. Localities that are neither a region nor a recognised zone name
// (zone IDs such as "use1-az1", empty strings) are rejected.
func ParseLocality(locality string) (region string, zonal bool, err error) {
	m := regionRe.FindStringSubmatch(locality)
	if m == nil {
		return "", false, fmt.Errorf("unrecognised locality %q", locality)
	}
	if m[2] == "" {
		return m[1], false, nil
	}
	if !zoneSuffixRe.MatchString(m[2]) {
		return "", false, fmt.Errorf("unrecognised zone suffix in locality %q", locality)
	}
	return m[1], true, nil
}

// RegionOf returns the region of a zone, or the locality itself when it is
// already a region. Unrecognised shapes fall back to dropping one trailing
// lowercase letter.
func RegionOf(locality string) string {
	if region, _, err := ParseLocality(locality); err == nil {
		return region
	}
	if n := len(locality); n > 0 && locality[n-1] >= 'a' && locality[n-1] <= 'z' {
		return locality[:n-1]
	}
	return locality
}

// IsRegion reports whether the locality names a region.
func IsRegion(locality string) bool {
	_, zonal, err := ParseLocality(locality)
	return err == nil && !zonal
}

// ReverseLocality returns the locality read right-to-left. Sorting on this key
// keeps zones of one region adjacent and puts a zone ahead of its region.
func ReverseLocality(locality string) string {
	r := []rune(locality)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// IsVPCProduct reports whether an EC2 product description is VPC-qualified.
func IsVPCProduct(product string) bool {
	return strings.HasSuffix(product, vpcSuffix)
}

// Less orders configurations field by field: size, locality, tenancy,
// platform, then non-VPC before VPC.
func Less(a, b Configuration) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	if a.Locality != b.Locality {
		return a.Locality < b.Locality
	}
	if a.Tenancy != b.Tenancy {
		return a.Tenancy < b.Tenancy
	}
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	return !a.VPC && b.VPC
}
