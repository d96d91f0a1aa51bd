package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/guimove/ricover/internal/model"
)

// JSONReporter outputs the reconciliation as JSON.
type JSONReporter struct {
	w io.Writer
}

type jsonOutput struct {
	Meta           Meta                  `json:"meta"`
	Reconciliation *model.Reconciliation `json:"reconciliation"`
}

func (r *JSONReporter) Report(ctx context.Context, rec *model.Reconciliation, meta Meta) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonOutput{Meta: meta, Reconciliation: rec}); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
