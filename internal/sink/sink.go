// Package sink persists flushed batches. Every implementation applies a batch
// atomically and treats records whose dedup key was already applied as no-ops,
// so redelivery after a crash or reconnect never duplicates rows.
package sink

import (
	"context"
	"fmt"

	"feedflow/models"
)

// Sink is the durable store behind one destination buffer.
type Sink interface {
	Name() string
	// WriteBatch applies records as one unit and returns how many were newly
	// applied. On error none of the batch is visible.
	WriteBatch(ctx context.Context, records []models.Record) (int, error)
	Close() error
}

// PersistenceError reports a failed batch write. The batch is still owned by
// the caller.
type PersistenceError struct {
	Destination string
	Records     int
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d records to %s: %v", e.Records, e.Destination, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(destination string, records int, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Destination: destination, Records: records, Err: err}
}
