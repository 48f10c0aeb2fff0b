package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"feedflow/models"
)

func TestGeneratorCreatesMetadata(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir, models.SpotGreeksSchema)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	df := DataFile{
		Path:        filepath.Join(dir, "date=2024-06-10", "spot_greeks_abc.parquet"),
		FileSize:    100,
		RecordCount: 10,
		Partition:   map[string]any{"date": "2024-06-10"},
		Timestamp:   time.Unix(1718035200, 0),
	}
	added, err := gen.AddFile(df)
	if err != nil || !added {
		t.Fatalf("AddFile: added=%v err=%v", added, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata", "metadata.json")); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	catalogDir := filepath.Join(dir, "catalog")
	if err := gen.WriteCatalogEntry(catalogDir, "spot_greeks"); err != nil {
		t.Fatalf("catalog entry: %v", err)
	}
	if _, err := os.Stat(filepath.Join(catalogDir, "spot_greeks.json")); err != nil {
		t.Fatalf("catalog entry not written: %v", err)
	}
}

func TestGeneratorIgnoresRecommittedFile(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir, models.SpotGreeksSchema)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	df := DataFile{Path: "a.parquet", RecordCount: 3, Timestamp: time.Unix(10, 0)}
	if _, err := gen.AddFile(df); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	added, err := gen.AddFile(df)
	if err != nil || added {
		t.Fatalf("second AddFile: added=%v err=%v", added, err)
	}

	// a fresh generator sees the committed file and keeps the table identity
	reopened, err := NewGenerator(dir, models.SpotGreeksSchema)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.meta.TableUUID != gen.meta.TableUUID {
		t.Fatal("table uuid changed across reopen")
	}
	if added, _ := reopened.AddFile(df); added {
		t.Fatal("reopened generator recommitted a known file")
	}
	if n := len(reopened.Snapshots()); n != 1 {
		t.Fatalf("expected 1 snapshot, got %d", n)
	}
}

func TestGeneratorFailedCommitLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir, models.SpotGreeksSchema)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	// a directory in place of metadata.json makes the final rename fail
	blocker := filepath.Join(dir, "metadata", "metadata.json")
	if err := os.MkdirAll(blocker, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	df := DataFile{Path: "a.parquet", RecordCount: 3, Timestamp: time.Unix(10, 0)}
	if added, err := gen.AddFile(df); err == nil || added {
		t.Fatalf("AddFile should fail: added=%v err=%v", added, err)
	}
	if snaps := gen.Snapshots(); len(snaps) != 0 {
		t.Fatalf("snapshots recorded without metadata on disk: %+v", snaps)
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err := gen.AddFile(df)
	if err != nil || !added {
		t.Fatalf("retry: added=%v err=%v", added, err)
	}
	if snaps := gen.Snapshots(); len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %+v", snaps)
	}
}
