package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/guimove/ricover/internal/model"
)

// TableReporter outputs the reconciliation as terminal tables, or as
// markdown tables when markdown is set.
type TableReporter struct {
	w        io.Writer
	markdown bool
}

func (r *TableReporter) Report(ctx context.Context, rec *model.Reconciliation, meta Meta) error {
	r.heading(1, "Reservation Coverage")
	fmt.Fprintf(r.w, "Scope:      %s\n", rec.Label)
	fmt.Fprintf(r.w, "Inventory:  %s\n", meta.Inventory)
	if !meta.GeneratedAt.IsZero() {
		fmt.Fprintf(r.w, "Generated:  %s\n", meta.GeneratedAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintln(r.w)

	r.heading(2, "Running instances")
	if len(rec.Matches) == 0 {
		fmt.Fprintf(r.w, "No running on-demand instances.\n\n")
	} else {
		r.render(r.matchTable(rec))
	}

	r.heading(2, "Reservations")
	if len(rec.Usage) == 0 {
		fmt.Fprintf(r.w, "No active reservations.\n\n")
	} else {
		r.render(r.usageTable(rec))
	}

	r.heading(2, "Summary")
	r.render(summaryTable(rec.Summary))

	if len(rec.Excluded) > 0 {
		r.heading(2, fmt.Sprintf("Excluded (%d)", len(rec.Excluded)))
		for _, e := range rec.Excluded {
			fmt.Fprintf(r.w, "- %s %s: %s\n", e.Kind, e.Subject, e.Reason)
		}
		fmt.Fprintln(r.w)
	}
	return nil
}

func (r *TableReporter) heading(level int, title string) {
	if r.markdown {
		fmt.Fprintf(r.w, "%s %s\n\n", strings.Repeat("#", level), title)
		return
	}
	fmt.Fprintf(r.w, "%s\n", title)
	if level == 1 {
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("=", 60))
	} else {
		fmt.Fprintf(r.w, "%s\n", strings.Repeat("-", len(title)))
	}
}

func (r *TableReporter) render(t table.Writer) {
	t.SetOutputMirror(r.w)
	if r.markdown {
		t.RenderMarkdown()
	} else {
		t.SetStyle(table.StyleLight)
		t.Render()
	}
	fmt.Fprintln(r.w)
}

func (r *TableReporter) matchTable(rec *model.Reconciliation) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Instance Type", "Zone", "Tenancy", "Product",
		"Running", "Reserved", "On-Demand",
		"$/h OD", "$/h RI best", "$/h RI worst", "$/month OD", "Savings",
	})
	t.SetColumnConfigs(rightAlign(5, 12))

	for i, m := range rec.Matches {
		row := table.Row{
			m.Config.Size, m.Config.Locality, m.Config.Tenancy, product(m.Config),
			m.Count, m.CountReserved, m.CountOnDemand(),
			"-", "-", "-", "-", "-",
		}
		if m.Offering != nil {
			row[7] = fmt.Sprintf("%.4f", m.Offering.CostOnDemand)
			if i < len(rec.Summary.Matches) {
				row[10] = fmt.Sprintf("%.2f", rec.Summary.Matches[i].MonthlyOnDemand)
			}
			if m.Offering.HasReserved {
				row[8] = fmt.Sprintf("%.4f", m.Offering.CostReservedBest)
				row[9] = fmt.Sprintf("%.4f", m.Offering.CostReservedWorst)
				if i < len(rec.Summary.Matches) {
					row[11] = fmt.Sprintf("%.0f%%", rec.Summary.Matches[i].SavingsBest*100)
				}
			}
		}
		t.AppendRow(row)
	}

	s := rec.Summary
	t.AppendFooter(table.Row{
		"Total", "", "", "",
		s.RunningUnits, s.CoveredUnits, s.OnDemandUnits,
		"", "", "", fmt.Sprintf("%.2f", s.MonthlyOnDemand), "",
	})
	return t
}

func (r *TableReporter) usageTable(rec *model.Reconciliation) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Instance Type", "Locality", "Tenancy", "Product",
		"Reserved", "Used", "Idle", "$/h", "Upfront", "Effective $/h", "Idle $/month",
	})
	t.SetColumnConfigs(rightAlign(5, 11))

	for i, u := range rec.Usage {
		effective, idleLoss := "-", "-"
		if i < len(rec.Summary.Reservations) {
			effective = fmt.Sprintf("%.4f", rec.Summary.Reservations[i].EffectiveHourly)
			idleLoss = fmt.Sprintf("%.2f", rec.Summary.Reservations[i].MonthlyIdleLoss)
		}
		t.AppendRow(table.Row{
			u.Config.Size, u.Config.Locality, u.Config.Tenancy, product(u.Config),
			u.Count, u.CountUsed, u.CountIdle(),
			fmt.Sprintf("%.4f", u.CostHourly), fmt.Sprintf("%.2f", u.CostUpfront),
			effective, idleLoss,
		})
	}

	s := rec.Summary
	t.AppendFooter(table.Row{
		"Total", "", "", "",
		s.ReservedUnits, s.ReservedUnits - s.IdleUnits, s.IdleUnits,
		"", "", "", fmt.Sprintf("%.2f", s.MonthlyIdleLoss),
	})
	return t
}

func summaryTable(s model.Summary) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.SetColumnConfigs(rightAlign(2, 2))
	t.AppendRows([]table.Row{
		{"Running units", s.RunningUnits},
		{"Covered by reservations", s.CoveredUnits},
		{"Billed on demand", s.OnDemandUnits},
		{"Reserved units", s.ReservedUnits},
		{"Idle reserved units", s.IdleUnits},
		{"On-demand spend ($/month)", fmt.Sprintf("%.2f", s.MonthlyOnDemand)},
		{"Potential savings, best ($/month)", fmt.Sprintf("%.2f", s.MonthlySavingsBest)},
		{"Potential savings, worst ($/month)", fmt.Sprintf("%.2f", s.MonthlySavingsWorst)},
		{"Idle reservation loss ($/month)", fmt.Sprintf("%.2f", s.MonthlyIdleLoss)},
	})
	return t
}

// rightAlign aligns the 1-based columns from..to to the right.
func rightAlign(from, to int) []table.ColumnConfig {
	var cfgs []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	return cfgs
}
