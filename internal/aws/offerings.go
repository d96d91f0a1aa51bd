package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/guimove/ricover/internal/pricing"
)

// throttlingCodes are the API error codes AWS returns when a caller exceeds
// its request rate.
var throttlingCodes = map[string]bool{
	"RequestLimitExceeded":      true,
	"Throttling":                true,
	"ThrottlingException":       true,
	"TooManyRequestsException":  true,
	"RequestThrottledException": true,
}

// classify wraps throttling errors in *pricing.RateLimitedError.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && throttlingCodes[apiErr.ErrorCode()] {
		return &pricing.RateLimitedError{Err: err}
	}
	return err
}

// Offerings lists the reservation offerings AWS sells for a configuration.
// Marketplace offerings are excluded. Results are cached when the provider
// has a cache.
func (p *Provider) Offerings(ctx context.Context, q pricing.OfferingQuery) ([]pricing.Offering, error) {
	if q.Region != "" && q.Region != p.scope.Region {
		return nil, fmt.Errorf("offerings for %s requested from a %s provider", q.Region, p.scope.Region)
	}

	key := fmt.Sprintf("offerings-%s-%s-%s-%s", p.scope.Region, q.Size, q.Tenancy, q.ProductDescription())
	var cached []pricing.Offering
	if p.cache.Get(key, &cached) {
		return cached, nil
	}

	input := &ec2.DescribeReservedInstancesOfferingsInput{
		IncludeMarketplace: aws.Bool(false),
		InstanceTenancy:    ec2types.Tenancy(q.Tenancy),
		ProductDescription: ec2types.RIProductDescription(q.ProductDescription()),
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-type"), Values: []string{q.Size}},
		},
	}

	out := []pricing.Offering{}
	paginator := ec2.NewDescribeReservedInstancesOfferingsPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(fmt.Errorf("describing offerings for %s: %w", q.Size, err))
		}
		for _, o := range page.ReservedInstancesOfferings {
			out = append(out, convertOffering(o))
		}
	}

	if err := p.cache.Set(key, out); err != nil {
		p.log.V(1).Info("caching offerings failed", "error", err.Error())
	}
	return out, nil
}

func convertOffering(o ec2types.ReservedInstancesOffering) pricing.Offering {
	var recurring float64
	if len(o.RecurringCharges) > 0 {
		recurring = aws.ToFloat64(o.RecurringCharges[0].Amount)
	}
	return pricing.Offering{
		ID:              aws.ToString(o.ReservedInstancesOfferingId),
		FixedPrice:      float64(aws.ToFloat32(o.FixedPrice)),
		DurationSeconds: aws.ToInt64(o.Duration),
		RecurringHourly: recurring,
		OfferingClass:   string(o.OfferingClass),
		OfferingType:    string(o.OfferingType),
	}
}
