package config

import (
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestDefault_RegionFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-3")
	cfg := Default()
	if got := cfg.Scopes[0].Region; got != "eu-west-3" {
		t.Errorf("got region %q, want eu-west-3", got)
	}
}

func TestValidate_NoScopes(t *testing.T) {
	cfg := Default()
	cfg.Scopes = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty scopes")
	}
}

func TestValidate_ScopeWithoutRegion(t *testing.T) {
	cfg := Default()
	cfg.Scopes = []ScopeConfig{{Profile: "prod"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for scope without region")
	}
}

func TestValidate_InvalidSource(t *testing.T) {
	cfg := Default()
	cfg.Inventory.Source = "cmdb"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid inventory source")
	}
}

func TestValidate_SourceRequirements(t *testing.T) {
	cfg := Default()
	cfg.Inventory.Source = SourceSnapshot
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for snapshot source without dir")
	}
	cfg.Inventory.SnapshotDir = "snapshots"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg = Default()
	cfg.Inventory.Source = SourcePrometheus
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for prometheus source without url")
	}
}

func TestValidate_InvalidFormat(t *testing.T) {
	cfg := Default()
	cfg.Output.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid output format")
	}
}

func TestValidate_InvalidRetry(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero retry attempts")
	}
}

func TestValidate_FixesConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Pricing.Concurrency = 0
	cfg.Reconcile.Concurrency = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pricing.Concurrency != 4 || cfg.Reconcile.Concurrency != 4 {
		t.Errorf("expected concurrency fixed to 4, got %d/%d", cfg.Pricing.Concurrency, cfg.Reconcile.Concurrency)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    ScopeConfig
		wantErr bool
	}{
		{"prod:us-east-1", ScopeConfig{Profile: "prod", Region: "us-east-1"}, false},
		{"eu-west-1", ScopeConfig{Region: "eu-west-1"}, false},
		{"prod:", ScopeConfig{}, true},
		{"", ScopeConfig{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
