package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/guimove/ricover/internal/model"
)

// File names written by WriteDir.
const (
	MatchesFile = "instance-reservation-usage.csv"
	UsageFile   = "reservation-usage.csv"
)

// Column order is part of the output contract.
var (
	matchHeader = []string{
		"instance_type", "availability_zone", "tenancy", "product",
		"count", "count_reserved", "cost_ondemand",
		"cost_reserved_worst", "cost_reserved_best",
	}
	usageHeader = []string{
		"instance_type", "availability_zone", "tenancy", "product",
		"cost_hourly", "cost_upfront", "count", "count_used",
	}
)

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteMatches writes match records as CSV. Cost cells of configurations
// without price data are left empty.
func WriteMatches(w io.Writer, matches []model.MatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(matchHeader); err != nil {
		return err
	}
	for _, m := range matches {
		var ondemand, worst, best string
		if m.Offering != nil {
			ondemand = formatCost(m.Offering.CostOnDemand)
			if m.Offering.HasReserved {
				worst = formatCost(m.Offering.CostReservedWorst)
				best = formatCost(m.Offering.CostReservedBest)
			}
		}
		row := []string{
			m.Config.Size, m.Config.Locality, m.Config.Tenancy, product(m.Config),
			strconv.Itoa(m.Count), strconv.Itoa(m.CountReserved),
			ondemand, worst, best,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUsage writes reservation usage records as CSV.
func WriteUsage(w io.Writer, usage []model.ReservationUsageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(usageHeader); err != nil {
		return err
	}
	for _, u := range usage {
		row := []string{
			u.Config.Size, u.Config.Locality, u.Config.Tenancy, product(u.Config),
			formatCost(u.CostHourly), formatCost(u.CostUpfront),
			strconv.Itoa(u.Count), strconv.Itoa(u.CountUsed),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVReporter writes both record sets to one stream, separated by a blank
// line.
type CSVReporter struct {
	w io.Writer
}

func (r *CSVReporter) Report(ctx context.Context, rec *model.Reconciliation, meta Meta) error {
	if err := WriteMatches(r.w, rec.Matches); err != nil {
		return fmt.Errorf("writing matches: %w", err)
	}
	if _, err := io.WriteString(r.w, "\n"); err != nil {
		return err
	}
	if err := WriteUsage(r.w, rec.Usage); err != nil {
		return fmt.Errorf("writing reservation usage: %w", err)
	}
	return nil
}

// WriteDir writes MatchesFile and UsageFile into dir. Both files are rendered
// in memory first and moved into place only once both are complete.
func WriteDir(dir string, rec *model.Reconciliation) error {
	var matches, usage bytes.Buffer
	if err := WriteMatches(&matches, rec.Matches); err != nil {
		return fmt.Errorf("rendering matches: %w", err)
	}
	if err := WriteUsage(&usage, rec.Usage); err != nil {
		return fmt.Errorf("rendering reservation usage: %w", err)
	}
	return WriteFiles(dir, map[string][]byte{
		MatchesFile: matches.Bytes(),
		UsageFile:   usage.Bytes(),
	})
}

// WriteFiles stages every file as a temporary file in dir and renames them
// into place once all writes succeeded. On failure no target is touched.
func WriteFiles(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	staged := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for name, data := range files {
		tmp, err := os.CreateTemp(dir, "."+name+"-*")
		if err != nil {
			cleanup()
			return fmt.Errorf("staging %s: %w", name, err)
		}
		staged[name] = tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			cleanup()
			return fmt.Errorf("staging %s: %w", name, err)
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return fmt.Errorf("staging %s: %w", name, err)
		}
	}

	for name, tmp := range staged {
		if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("writing %s: %w", name, err)
		}
		delete(staged, name)
	}
	return nil
}
