package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guimove/ricover/internal/model"
)

// StaticSource loads a snapshot from a JSON file.
// Used for testing, offline analysis, and CI pipelines.
type StaticSource struct {
	filePath string
	snapshot *model.Snapshot
}

// NewStaticSource creates a source that reads from a JSON file.
func NewStaticSource(filePath string) *StaticSource {
	return &StaticSource{filePath: filePath}
}

// NewStaticSourceFromSnapshot creates a source from a pre-built snapshot.
func NewStaticSourceFromSnapshot(snap *model.Snapshot) *StaticSource {
	return &StaticSource{snapshot: snap}
}

// Ping checks that the file exists.
func (s *StaticSource) Ping(ctx context.Context) error {
	if s.snapshot != nil {
		return nil
	}
	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("snapshot file: %w", err)
	}
	return nil
}

// BackendType returns "static".
func (s *StaticSource) BackendType() string {
	return "static"
}

// Collect loads the snapshot from the JSON file.
func (s *StaticSource) Collect(ctx context.Context) (*model.Snapshot, error) {
	if s.snapshot != nil {
		return s.snapshot, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot file %s: %w", s.filePath, err)
	}
	return &snap, nil
}

// SnapshotFileName returns the file name a scope's snapshot is stored under.
func SnapshotFileName(scope model.Scope) string {
	profile := scope.Profile
	if profile == "" {
		profile = "default"
	}
	name := profile + "_" + scope.Region + ".json"
	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}

// WriteSnapshot writes snap as indented JSON, replacing path atomically.
func WriteSnapshot(path string, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
