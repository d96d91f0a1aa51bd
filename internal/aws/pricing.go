package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/guimove/ricover/internal/normalize"
	ricpricing "github.com/guimove/ricover/internal/pricing"
)

// priceListItem maps the price-list JSON fields we need.
type priceListItem struct {
	Product struct {
		Attributes struct {
			InstanceType    string `json:"instanceType"`
			Location        string `json:"location"`
			Tenancy         string `json:"tenancy"`
			OperatingSystem string `json:"operatingSystem"`
		} `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				Unit         string            `json:"unit"`
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// LoadCatalog builds the on-demand catalog for the given regions from the
// Pricing API. Each region's entries are cached separately.
func (p *Provider) LoadCatalog(ctx context.Context, regions []string) (*ricpricing.Catalog, error) {
	var entries []ricpricing.CatalogEntry
	for _, region := range regions {
		regionEntries, err := p.catalogRegion(ctx, region)
		if err != nil {
			return nil, err
		}
		entries = append(entries, regionEntries...)
	}
	return ricpricing.NewCatalog(entries), nil
}

func (p *Provider) catalogRegion(ctx context.Context, region string) ([]ricpricing.CatalogEntry, error) {
	key := "ondemand-" + region
	var cached []ricpricing.CatalogEntry
	if p.cache.Get(key, &cached) {
		p.log.V(1).Info("on-demand catalog from cache", "region", region, "entries", len(cached))
		return cached, nil
	}

	input := &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters: []pricingtypes.Filter{
			termMatch("location", ricpricing.LocationName(region)),
			termMatch("capacitystatus", "Used"),
			termMatch("preInstalledSw", "NA"),
			termMatch("licenseModel", "No License required"),
		},
		FormatVersion: aws.String("aws_v1"),
	}

	var entries []ricpricing.CatalogEntry
	skipped := 0
	paginator := pricing.NewGetProductsPaginator(p.pricingClient, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(fmt.Errorf("getting on-demand prices for %s: %w", region, err))
		}
		for _, doc := range page.PriceList {
			entry, ok, err := parsePriceListItem(doc)
			if err != nil {
				return nil, fmt.Errorf("parsing price list for %s: %w", region, err)
			}
			if !ok {
				skipped++
				continue
			}
			entries = append(entries, entry)
		}
	}

	p.log.V(1).Info("loaded on-demand catalog", "region", region, "entries", len(entries), "skipped", skipped)
	if err := p.cache.Set(key, entries); err != nil {
		p.log.V(1).Info("caching catalog failed", "error", err.Error())
	}
	return entries, nil
}

func termMatch(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Type:  pricingtypes.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// parsePriceListItem extracts one catalog entry. Items for platforms we do not
// track, or without a positive hourly USD price, are skipped.
func parsePriceListItem(doc string) (ricpricing.CatalogEntry, bool, error) {
	var item priceListItem
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		return ricpricing.CatalogEntry{}, false, err
	}

	attrs := item.Product.Attributes
	if attrs.InstanceType == "" {
		return ricpricing.CatalogEntry{}, false, nil
	}
	platform, err := normalize.Platform(attrs.OperatingSystem)
	if err != nil {
		return ricpricing.CatalogEntry{}, false, nil
	}

	var hourly float64
	for _, term := range item.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			if dim.Unit != "Hrs" {
				continue
			}
			usd, err := strconv.ParseFloat(dim.PricePerUnit["USD"], 64)
			if err != nil {
				continue
			}
			hourly = usd
		}
	}
	if hourly <= 0 {
		return ricpricing.CatalogEntry{}, false, nil
	}

	return ricpricing.CatalogEntry{
		Size:     attrs.InstanceType,
		Region:   ricpricing.RegionCode(attrs.Location),
		Tenancy:  ricpricing.TenancyCode(attrs.Tenancy),
		Platform: platform,
		Hourly:   hourly,
	}, true, nil
}
