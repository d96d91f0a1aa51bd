package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/guimove/ricover/internal/model"
	"github.com/guimove/ricover/internal/normalize"
)

// CatalogEntry is one on-demand hourly price.
type CatalogEntry struct {
	Size     string         `json:"instance_type"`
	Region   string         `json:"region"`
	Tenancy  string         `json:"tenancy"`
	Platform model.Platform `json:"platform"`
	Hourly   float64        `json:"hourly"`
}

type catalogKey struct {
	size     string
	region   string
	tenancy  string
	platform model.Platform
}

// Catalog is an immutable on-demand price table. It is safe for concurrent
// use and meant to be shared by reference across runs.
type Catalog struct {
	prices map[catalogKey]float64
}

// NewCatalog builds a catalog. When two entries share a key the later one
// wins.
func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{prices: make(map[catalogKey]float64, len(entries))}
	for _, e := range entries {
		c.prices[catalogKey{e.Size, e.Region, e.Tenancy, e.Platform}] = e.Hourly
	}
	return c
}

// Len returns the number of priced keys.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.prices)
}

// OnDemand returns the hourly on-demand price of a configuration, looked up
// by size, region, tenancy and platform.
func (c *Catalog) OnDemand(cfg model.Configuration) (float64, error) {
	region := cfg.Region()
	if c != nil {
		if p, ok := c.prices[catalogKey{cfg.Size, region, cfg.Tenancy, cfg.Platform}]; ok {
			return p, nil
		}
	}
	return 0, &PriceNotFoundError{Config: cfg, Region: region}
}

// Entries returns the catalog contents sorted by region, size, tenancy and
// platform.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, 0, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.prices {
		out = append(out, CatalogEntry{Size: k.size, Region: k.region, Tenancy: k.tenancy, Platform: k.platform, Hourly: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.Tenancy != b.Tenancy {
			return a.Tenancy < b.Tenancy
		}
		return a.Platform < b.Platform
	})
	return out
}

// fileEntry is one element of a catalog file:
//
//	[{"attributes": {"instanceType": "m4.xlarge", "location": "US East (N. Virginia)",
//	  "tenancy": "Shared", "operatingSystem": "Linux"}, "cost": 0.2}]
type fileEntry struct {
	Attributes struct {
		InstanceType    string `json:"instanceType"`
		Location        string `json:"location"`
		Tenancy         string `json:"tenancy"`
		OperatingSystem string `json:"operatingSystem"`
	} `json:"attributes"`
	Cost float64 `json:"cost"`
}

// LoadCatalogFile reads a catalog file. Entries with an unknown operating
// system are skipped and counted.
func LoadCatalogFile(path string) (*Catalog, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog file contents.
func ParseCatalog(data []byte) (*Catalog, int, error) {
	var raw []fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parsing catalog: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		p, err := normalize.Platform(r.Attributes.OperatingSystem)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, CatalogEntry{
			Size:     r.Attributes.InstanceType,
			Region:   RegionCode(r.Attributes.Location),
			Tenancy:  TenancyCode(r.Attributes.Tenancy),
			Platform: p,
			Hourly:   r.Cost,
		})
	}
	return NewCatalog(entries), skipped, nil
}

// MarshalCatalog renders a catalog in the catalog file format.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	entries := c.Entries()
	raw := make([]fileEntry, len(entries))
	for i, e := range entries {
		raw[i].Attributes.InstanceType = e.Size
		raw[i].Attributes.Location = LocationName(e.Region)
		raw[i].Attributes.Tenancy = TenancyName(e.Tenancy)
		raw[i].Attributes.OperatingSystem = string(e.Platform)
		raw[i].Cost = e.Hourly
	}
	return json.MarshalIndent(raw, "", "  ")
}
