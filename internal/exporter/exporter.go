// Package exporter publishes a reconciliation as Prometheus gauges.
package exporter

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/guimove/ricover/internal/model"
)

const namespace = "ricover"

// Label names shared by the per-configuration gauges.
const (
	LabelInstanceType     = "instance_type"
	LabelAvailabilityZone = "availability_zone"
	LabelTenancy          = "tenancy"
	LabelProduct          = "product"
)

var configLabels = []string{LabelInstanceType, LabelAvailabilityZone, LabelTenancy, LabelProduct}

// Exporter holds the gauges of the latest reconciliation on a private
// registry.
type Exporter struct {
	registry *prometheus.Registry

	Running          *prometheus.GaugeVec
	RunningReserved  *prometheus.GaugeVec
	Reserved         *prometheus.GaugeVec
	ReservedUsed     *prometheus.GaugeVec
	OnDemandPrice    *prometheus.GaugeVec
	MonthlyOnDemand  prometheus.Gauge
	MonthlySavings   *prometheus.GaugeVec
	MonthlyIdleLoss  prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New creates an exporter with all gauges registered.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		Running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_instances",
			Help:      "Running on-demand billed instances per configuration.",
		}, configLabels),
		RunningReserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_instances_reserved",
			Help:      "Running instances covered by a reservation per configuration.",
		}, configLabels),
		Reserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserved_instances",
			Help:      "Active reserved instances per configuration.",
		}, configLabels),
		ReservedUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserved_instances_used",
			Help:      "Reserved instances consumed by running instances per configuration.",
		}, configLabels),
		OnDemandPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ondemand_hourly_price_dollars",
			Help:      "On-demand hourly price per running configuration.",
		}, configLabels),
		MonthlyOnDemand: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monthly_ondemand_cost_dollars",
			Help:      "Monthly cost of instances billed on demand.",
		}),
		MonthlySavings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monthly_potential_savings_dollars",
			Help:      "Monthly savings if on-demand instances were reserved.",
		}, []string{"price"}),
		MonthlyIdleLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monthly_idle_reservation_cost_dollars",
			Help:      "Monthly cost of reserved instances nothing runs on.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reconciliation_timestamp_seconds",
			Help:      "Unix time of the last successful reconciliation.",
		}),
	}

	e.registry.MustRegister(
		e.Running,
		e.RunningReserved,
		e.Reserved,
		e.ReservedUsed,
		e.OnDemandPrice,
		e.MonthlyOnDemand,
		e.MonthlySavings,
		e.MonthlyIdleLoss,
		e.LastRunTimestamp,
	)
	return e
}

// Gatherer returns the private registry.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

func labels(cfg model.Configuration) prometheus.Labels {
	return prometheus.Labels{
		LabelInstanceType:     cfg.Size,
		LabelAvailabilityZone: cfg.Locality,
		LabelTenancy:          cfg.Tenancy,
		LabelProduct:          cfg.Platform.ProductDescription(cfg.VPC),
	}
}

// Update replaces every gauge with the figures of rec. Reservation pools
// sharing a configuration are summed.
func (e *Exporter) Update(rec *model.Reconciliation, at time.Time) {
	e.Running.Reset()
	e.RunningReserved.Reset()
	e.Reserved.Reset()
	e.ReservedUsed.Reset()
	e.OnDemandPrice.Reset()

	for _, m := range rec.Matches {
		l := labels(m.Config)
		e.Running.With(l).Add(float64(m.Count))
		e.RunningReserved.With(l).Add(float64(m.CountReserved))
		if m.Offering != nil {
			e.OnDemandPrice.With(l).Set(m.Offering.CostOnDemand)
		}
	}
	for _, u := range rec.Usage {
		l := labels(u.Config)
		e.Reserved.With(l).Add(float64(u.Count))
		e.ReservedUsed.With(l).Add(float64(u.CountUsed))
	}

	e.MonthlyOnDemand.Set(rec.Summary.MonthlyOnDemand)
	e.MonthlySavings.WithLabelValues("best").Set(rec.Summary.MonthlySavingsBest)
	e.MonthlySavings.WithLabelValues("worst").Set(rec.Summary.MonthlySavingsWorst)
	e.MonthlyIdleLoss.Set(rec.Summary.MonthlyIdleLoss)
	e.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the gauges in the text exposition format for the
// node-exporter textfile collector. The file is replaced atomically.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
