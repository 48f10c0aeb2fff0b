package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"feedflow/logger"
	"feedflow/models"
)

// SQLiteSink writes each batch inside one IMMEDIATE transaction with
// INSERT OR IGNORE on a table keyed by the record dedup key.
type SQLiteSink struct {
	schema *models.Schema
	table  string
	path   string
	pool   *sqlitex.Pool
	insert string
	log    *logger.Log
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// NewSQLiteSink opens (creating if needed) the database at path and ensures
// the destination table exists. An empty table name uses the destination.
func NewSQLiteSink(schema *models.Schema, path, table string, log *logger.Log) (*SQLiteSink, error) {
	if table == "" {
		table = string(schema.Destination)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite sink: %w", err)
		}
	}

	s := &SQLiteSink{
		schema: schema,
		table:  table,
		path:   path,
		insert: insertStatement(schema, table),
		log:    logger.Or(log),
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    1,
		PrepareConn: s.prepare,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	s.pool = pool

	// run PrepareConn now so schema problems surface at startup
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlite sink: %w", err)
	}
	pool.Put(conn)

	s.log.WithComponent("sqlite_sink").WithFields(logger.Fields{
		"path":  path,
		"table": table,
	}).Info("sqlite sink ready")
	return s, nil
}

func (s *SQLiteSink) prepare(conn *sqlite.Conn) error {
	for _, p := range sqlitePragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return sqlitex.ExecuteScript(conn, createStatement(s.schema, s.table), nil)
}

func (s *SQLiteSink) Name() string { return "sqlite:" + s.table }

// WriteBatch returns the number of rows actually inserted; rows whose key
// already exists count zero.
func (s *SQLiteSink) WriteBatch(ctx context.Context, records []models.Record) (n int, err error) {
	if len(records) == 0 {
		return 0, nil
	}
	dest := string(s.schema.Destination)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, persistErr(dest, len(records), err)
	}
	defer s.pool.Put(conn)

	n, err = s.insertAll(conn, records)
	if err != nil {
		return 0, persistErr(dest, len(records), err)
	}
	return n, nil
}

func (s *SQLiteSink) insertAll(conn *sqlite.Conn, records []models.Record) (n int, err error) {
	end, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer end(&err)

	for _, rec := range records {
		if rec.Schema() != s.schema {
			return 0, fmt.Errorf("record for %s in %s batch", rec.Schema().Destination, s.schema.Destination)
		}
		if err := sqlitex.Execute(conn, s.insert, &sqlitex.ExecOptions{Args: sqliteArgs(rec.Values())}); err != nil {
			return 0, fmt.Errorf("insert %s: %w", rec.DedupKey(), err)
		}
		n += conn.Changes()
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Count returns the number of rows in the table.
func (s *SQLiteSink) Count(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var n int64
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM "+quoteIdent(s.table), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	return n, err
}

func sqliteArgs(values []any) []any {
	args := make([]any, len(values))
	for i, v := range values {
		if b, ok := v.(bool); ok {
			if b {
				args[i] = int64(1)
			} else {
				args[i] = int64(0)
			}
			continue
		}
		args[i] = v
	}
	return args
}

func sqliteType(t models.ColumnType) string {
	switch t {
	case models.ColumnInteger, models.ColumnBool:
		return "INTEGER"
	case models.ColumnReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func createStatement(schema *models.Schema, table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(table))
	for _, c := range schema.Columns {
		fmt.Fprintf(&b, "\t%s %s", quoteIdent(c.Name), sqliteType(c.Type))
		if c.Name == schema.Key {
			b.WriteString(" PRIMARY KEY")
		}
		b.WriteString(",\n")
	}
	b.WriteString("\tinserted_at TEXT DEFAULT CURRENT_TIMESTAMP\n);")
	return b.String()
}

func insertStatement(schema *models.Schema, table string) string {
	names := schema.ColumnNames()
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		cols[i] = quoteIdent(n)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
