// Package metadata keeps an Iceberg-style manifest log beside a local table
// of parquet files so external engines can discover committed batches.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"feedflow/models"
)

// DataFile is one committed parquet object.
type DataFile struct {
	Path        string         `json:"path"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition"`
	Timestamp   time.Time      `json:"-"`
}

type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

type Snapshot struct {
	SnapshotID   int64  `json:"snapshot-id"`
	TimestampMs  int64  `json:"timestamp-ms"`
	Manifest     string `json:"manifest-list"`
	DataFile     string `json:"data-file"`
	AddedRecords int64  `json:"added-records"`
}

type SchemaField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type TableMetadata struct {
	FormatVersion     int           `json:"format-version"`
	TableUUID         string        `json:"table-uuid"`
	Location          string        `json:"location"`
	Fields            []SchemaField `json:"schema-fields"`
	IdentifierField   string        `json:"identifier-field,omitempty"`
	CurrentSnapshotID int64         `json:"current-snapshot-id"`
	Snapshots         []Snapshot    `json:"snapshots"`
}

// Generator appends snapshots for one table. It reloads an existing
// metadata.json so the table identity survives restarts.
type Generator struct {
	mu       sync.Mutex
	basePath string
	meta     TableMetadata
	files    map[string]struct{}
}

func NewGenerator(basePath string, schema *models.Schema) (*Generator, error) {
	g := &Generator{basePath: basePath, files: make(map[string]struct{})}

	b, err := os.ReadFile(g.metadataPath())
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &g.meta); err != nil {
			return nil, fmt.Errorf("read table metadata: %w", err)
		}
		for _, s := range g.meta.Snapshots {
			g.files[s.DataFile] = struct{}{}
		}
	case errors.Is(err, os.ErrNotExist):
		g.meta = TableMetadata{
			FormatVersion: 2,
			TableUUID:     uuid.NewString(),
			Location:      basePath,
		}
	default:
		return nil, err
	}
	g.meta.Fields = schemaFields(schema)
	g.meta.IdentifierField = schema.Key
	return g, nil
}

// AddFile commits df as a new snapshot. A path already committed is a no-op
// and reports false.
func (g *Generator) AddFile(df DataFile) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.files[df.Path]; ok {
		return false, nil
	}
	if df.Timestamp.IsZero() {
		df.Timestamp = time.Now()
	}

	snapID := df.Timestamp.UnixNano()
	if n := len(g.meta.Snapshots); n > 0 && snapID <= g.meta.Snapshots[n-1].SnapshotID {
		snapID = g.meta.Snapshots[n-1].SnapshotID + 1
	}
	manifestFile := fmt.Sprintf("manifest-%d.json", snapID)
	b, err := json.Marshal([]ManifestEntry{{Status: 1, DataFile: df}})
	if err != nil {
		return false, err
	}
	if err := writeAtomic(filepath.Join(g.basePath, "metadata", manifestFile), b); err != nil {
		return false, err
	}

	next := g.meta
	next.Snapshots = append(append([]Snapshot(nil), g.meta.Snapshots...), Snapshot{
		SnapshotID:   snapID,
		TimestampMs:  df.Timestamp.UnixMilli(),
		Manifest:     manifestFile,
		DataFile:     df.Path,
		AddedRecords: df.RecordCount,
	})
	next.CurrentSnapshotID = snapID

	b, err = json.MarshalIndent(next, "", "  ")
	if err != nil {
		return false, err
	}
	if err := writeAtomic(g.metadataPath(), b); err != nil {
		return false, err
	}
	g.meta = next
	g.files[df.Path] = struct{}{}
	return true, nil
}

// Snapshots returns a copy of the committed snapshots.
func (g *Generator) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Snapshot(nil), g.meta.Snapshots...)
}

// WriteCatalogEntry points a catalog file named after the table at the
// metadata location.
func (g *Generator) WriteCatalogEntry(catalogDir, tableName string) error {
	entry := map[string]string{
		"name":              tableName,
		"table_uuid":        g.meta.TableUUID,
		"metadata_location": g.metadataPath(),
	}
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(catalogDir, tableName+".json"), b)
}

func (g *Generator) metadataPath() string {
	return filepath.Join(g.basePath, "metadata", "metadata.json")
}

func schemaFields(schema *models.Schema) []SchemaField {
	out := make([]SchemaField, len(schema.Columns))
	for i, c := range schema.Columns {
		t := "string"
		switch c.Type {
		case models.ColumnInteger:
			t = "long"
		case models.ColumnReal:
			t = "double"
		case models.ColumnBool:
			t = "boolean"
		}
		out[i] = SchemaField{ID: i + 1, Name: c.Name, Type: t, Required: c.Name == schema.Key}
	}
	return out
}

// writeAtomic replaces path with data through a temp file and rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
