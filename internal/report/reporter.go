// Package report renders a reconciliation for people (table, markdown) and
// for downstream tooling (json, csv).
package report

import (
	"context"
	"io"
	"time"

	"github.com/guimove/ricover/internal/model"
)

// Reporter formats and writes a reconciliation to an output destination.
type Reporter interface {
	Report(ctx context.Context, rec *model.Reconciliation, meta Meta) error
}

// Meta contains contextual metadata for the report.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Inventory   string    `json:"inventory"`
	Fleet       bool      `json:"fleet"`
	Version     string    `json:"version,omitempty"`
}

// Formats lists the accepted output formats.
var Formats = []string{"table", "markdown", "json", "csv"}

// NewReporter creates a reporter for the given format writing to w.
func NewReporter(format string, w io.Writer) Reporter {
	switch format {
	case "json":
		return &JSONReporter{w: w}
	case "markdown":
		return &TableReporter{w: w, markdown: true}
	case "csv":
		return &CSVReporter{w: w}
	default:
		return &TableReporter{w: w}
	}
}

func product(cfg model.Configuration) string {
	return cfg.Platform.ProductDescription(cfg.VPC)
}
