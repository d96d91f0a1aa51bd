package inventory

import (
	"context"
	"fmt"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"

	"github.com/guimove/ricover/internal/model"
)

// PrometheusSource counts on-demand Kubernetes nodes from kube-state-metrics
// stored in Prometheus, Thanos or Cortex. It knows nothing about
// reservations.
type PrometheusSource struct {
	api      promv1.API
	endpoint string
	backend  string
	timeout  time.Duration
	now      func() time.Time
}

// PrometheusOption configures the Prometheus source.
type PrometheusOption func(*PrometheusSource)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) PrometheusOption {
	return func(s *PrometheusSource) { s.timeout = d }
}

// NewPrometheusSource creates a source connected to the given endpoint.
func NewPrometheusSource(endpoint string, opts ...PrometheusOption) (*PrometheusSource, error) {
	client, err := promapi.NewClient(promapi.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}

	s := newPrometheusSource(promv1.NewAPI(client), endpoint)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newPrometheusSource(api promv1.API, endpoint string) *PrometheusSource {
	return &PrometheusSource{
		api:      api,
		endpoint: endpoint,
		backend:  "prometheus",
		timeout:  60 * time.Second,
		now:      time.Now,
	}
}

// Ping checks connectivity and detects the backend type.
func (s *PrometheusSource) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, _, err := s.api.Query(ctx, "up", s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrPrometheusUnreachable, err)
	}

	s.detectBackend(ctx)
	return nil
}

// BackendType returns the detected backend type.
func (s *PrometheusSource) BackendType() string {
	return s.backend
}

// detectBackend tries to identify Thanos or Cortex.
func (s *PrometheusSource) detectBackend(ctx context.Context) {
	result, _, err := s.api.Query(ctx, "thanos_store_nodes_total", s.now())
	if err == nil && nonEmpty(result) {
		s.backend = "thanos"
		return
	}

	result, _, err = s.api.Query(ctx, "cortex_ingester_active_series", s.now())
	if err == nil && nonEmpty(result) {
		s.backend = "cortex"
	}
}

func nonEmpty(v prommodel.Value) bool {
	vec, ok := v.(prommodel.Vector)
	return ok && len(vec) > 0
}

// Collect returns one running instance per on-demand node currently known to
// kube-state-metrics.
func (s *PrometheusSource) Collect(ctx context.Context) (*model.Snapshot, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	result, _, err := s.api.Query(queryCtx, queryOnDemandNodes, now)
	if err != nil {
		return nil, fmt.Errorf("querying node inventory: %w", err)
	}

	instances := instancesFromVector(result)
	if len(instances) == 0 {
		return nil, ErrNoNodesFound
	}

	return &model.Snapshot{
		CollectedAt: now.UTC(),
		Instances:   instances,
	}, nil
}

// instancesFromVector expands per-label-set node counts into instances.
func instancesFromVector(v prommodel.Value) []model.RawInstance {
	vec, ok := v.(prommodel.Vector)
	if !ok {
		return nil
	}

	var out []model.RawInstance
	for _, sample := range vec {
		labels := map[string]string{
			LabelInstanceType: string(sample.Metric[promLabelInstanceType]),
			LabelZone:         string(sample.Metric[promLabelZone]),
			LabelOS:           string(sample.Metric[promLabelOS]),
		}
		raw, ok := NodeInstance("", labels)
		if !ok {
			continue
		}
		for i := 0; i < int(sample.Value); i++ {
			out = append(out, raw)
		}
	}
	return out
}
