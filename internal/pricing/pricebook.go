package pricing

import (
	"sort"

	"github.com/guimove/ricover/internal/model"
)

// PriceBook holds resolved offerings keyed by configuration.
type PriceBook struct {
	offerings map[model.Configuration]model.PricedOffering
}

// NewPriceBook returns a book holding the given offerings.
func NewPriceBook(offerings ...model.PricedOffering) *PriceBook {
	b := &PriceBook{offerings: make(map[model.Configuration]model.PricedOffering, len(offerings))}
	for _, o := range offerings {
		b.Add(o)
	}
	return b
}

// Add stores an offering under its configuration.
func (b *PriceBook) Add(o model.PricedOffering) {
	b.offerings[o.Config] = o
}

// Lookup returns the offering of a configuration. When there is none it
// falls back to the same configuration with the opposite network mode, whose
// on-demand and reserved prices are identical.
func (b *PriceBook) Lookup(cfg model.Configuration) (model.PricedOffering, bool) {
	if b == nil {
		return model.PricedOffering{}, false
	}
	if o, ok := b.offerings[cfg]; ok {
		return o, true
	}
	twin := cfg
	twin.VPC = !cfg.VPC
	if o, ok := b.offerings[twin]; ok {
		o.Config = cfg
		return o, true
	}
	return model.PricedOffering{}, false
}

// Len returns the number of offerings.
func (b *PriceBook) Len() int {
	if b == nil {
		return 0
	}
	return len(b.offerings)
}

// All returns every offering in configuration order.
func (b *PriceBook) All() []model.PricedOffering {
	if b == nil {
		return nil
	}
	out := make([]model.PricedOffering, 0, len(b.offerings))
	for _, o := range b.offerings {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return model.Less(out[i].Config, out[j].Config) })
	return out
}
