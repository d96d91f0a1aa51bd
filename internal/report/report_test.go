package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guimove/ricover/internal/model"
)

func testReconciliation() *model.Reconciliation {
	priced := model.Configuration{Size: "m4.xlarge", Locality: "us-east-1a", Tenancy: "default", Platform: model.PlatformLinux, VPC: true}
	unpriced := model.Configuration{Size: "x9.huge", Locality: "us-east-1b", Tenancy: "default", Platform: model.PlatformWindows}
	regional := model.Configuration{Size: "m4.xlarge", Locality: "us-east-1", Tenancy: "default", Platform: model.PlatformLinux}

	matches := []model.MatchRecord{
		{
			Config: priced, Count: 5, CountReserved: 3,
			Offering: &model.PricedOffering{Config: priced, CostOnDemand: 0.2, CostReservedBest: 0.12, CostReservedWorst: 0.15, HasReserved: true},
		},
		{Config: unpriced, Count: 2},
	}
	usage := []model.ReservationUsageRecord{
		{Config: regional, Count: 4, CountUsed: 3, CostHourly: 0.1, CostUpfront: 100},
	}
	return &model.Reconciliation{
		Label:    "111/us-east-1",
		Matches:  matches,
		Usage:    usage,
		Excluded: []model.Exclusion{{Kind: "instance", Subject: "i-1", Reason: "unknown platform"}},
		Summary:  model.Summarize(matches, usage),
	}
}

func TestWriteMatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatches(&buf, testReconciliation().Matches))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"instance_type", "availability_zone", "tenancy", "product",
		"count", "count_reserved", "cost_ondemand", "cost_reserved_worst", "cost_reserved_best",
	}, rows[0])
	assert.Equal(t, []string{
		"m4.xlarge", "us-east-1a", "default", "Linux/UNIX (Amazon VPC)",
		"5", "3", "0.2", "0.15", "0.12",
	}, rows[1])
	assert.Equal(t, []string{
		"x9.huge", "us-east-1b", "default", "Windows",
		"2", "0", "", "", "",
	}, rows[2])
}

func TestWriteMatches_OnDemandOnly(t *testing.T) {
	cfg := model.Configuration{Size: "t3.nano", Locality: "us-east-1a", Tenancy: "default", Platform: model.PlatformLinux}
	var buf bytes.Buffer
	require.NoError(t, WriteMatches(&buf, []model.MatchRecord{
		{Config: cfg, Count: 1, Offering: &model.PricedOffering{Config: cfg, CostOnDemand: 0.0052}},
	}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"0.0052", "", ""}, rows[1][6:])
}

func TestWriteUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUsage(&buf, testReconciliation().Usage))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"instance_type", "availability_zone", "tenancy", "product",
		"cost_hourly", "cost_upfront", "count", "count_used",
	}, rows[0])
	assert.Equal(t, []string{"m4.xlarge", "us-east-1", "default", "Linux/UNIX", "0.1", "100", "4", "3"}, rows[1])
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteDir(dir, testReconciliation()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{MatchesFile, UsageFile}, names)

	data, err := os.ReadFile(filepath.Join(dir, UsageFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "instance_type,availability_zone"))
}

func TestWriteFiles_FailureRemovesStagedFiles(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory in the way of the target makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b.csv"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv", "keep"), nil, 0o644))

	err := WriteFiles(dir, map[string][]byte{"b.csv": []byte("new")})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staged temp files must be removed")
}

func TestCSVReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter("csv", &buf).Report(context.Background(), testReconciliation(), Meta{}))

	parts := strings.Split(buf.String(), "\n\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1], "instance_type,availability_zone,tenancy,product,cost_hourly"))
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	meta := Meta{GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Inventory: "ec2"}
	require.NoError(t, NewReporter("json", &buf).Report(context.Background(), testReconciliation(), meta))

	var out struct {
		Meta           Meta                 `json:"meta"`
		Reconciliation model.Reconciliation `json:"reconciliation"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "ec2", out.Meta.Inventory)
	assert.Len(t, out.Reconciliation.Matches, 2)
	assert.Equal(t, 7, out.Reconciliation.Summary.RunningUnits)
	assert.Nil(t, out.Reconciliation.Matches[1].Offering)
}

func TestTableReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter("table", &buf).Report(context.Background(), testReconciliation(), Meta{Inventory: "ec2"}))

	out := buf.String()
	assert.Contains(t, out, "Reservation Coverage")
	assert.Contains(t, out, "m4.xlarge")
	assert.Contains(t, out, "Linux/UNIX (Amazon VPC)")
	assert.Contains(t, out, "Excluded (1)")
	assert.Contains(t, out, "unknown platform")
}

func TestMarkdownReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter("markdown", &buf).Report(context.Background(), testReconciliation(), Meta{}))

	out := buf.String()
	assert.Contains(t, out, "# Reservation Coverage")
	assert.Contains(t, out, "## Running instances")
	assert.Contains(t, out, "| m4.xlarge |")
}

func TestTableReporter_Empty(t *testing.T) {
	rec := &model.Reconciliation{Label: "fleet"}
	var buf bytes.Buffer
	require.NoError(t, NewReporter("table", &buf).Report(context.Background(), rec, Meta{}))
	assert.Contains(t, buf.String(), "No running on-demand instances.")
	assert.Contains(t, buf.String(), "No active reservations.")
}
