package buffer

import (
	"context"
	"errors"
	"time"

	"feedflow/models"
)

// Set holds the buffers of one connection in routing order. Its membership
// is fixed at construction.
type Set struct {
	ordered []*Buffer
	byDest  map[models.Destination]*Buffer
}

func NewSet(buffers ...*Buffer) *Set {
	s := &Set{byDest: make(map[models.Destination]*Buffer, len(buffers))}
	for _, b := range buffers {
		if _, dup := s.byDest[b.destination]; dup {
			continue
		}
		s.ordered = append(s.ordered, b)
		s.byDest[b.destination] = b
	}
	return s
}

func (s *Set) Get(d models.Destination) (*Buffer, bool) {
	b, ok := s.byDest[d]
	return b, ok
}

func (s *Set) Buffers() []*Buffer { return s.ordered }

// Pending is the number of records waiting across all buffers. It may be
// called from any goroutine.
func (s *Set) Pending() int {
	n := 0
	for _, b := range s.ordered {
		n += int(b.depth.Load())
	}
	return n
}

// MaybeFlush flushes every buffer whose threshold has fired. A failing
// buffer does not stop the others.
func (s *Set) MaybeFlush(ctx context.Context, now time.Time) error {
	var errs []error
	for _, b := range s.ordered {
		if _, err := b.MaybeFlush(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushAll flushes every non-empty buffer once with the given trigger.
func (s *Set) FlushAll(ctx context.Context, now time.Time, trigger Trigger) error {
	var errs []error
	for _, b := range s.ordered {
		if err := b.Flush(ctx, now, trigger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NextDeadline is the earliest interval deadline among non-empty buffers.
func (s *Set) NextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, b := range s.ordered {
		d, ok := b.NextDeadline()
		if !ok {
			continue
		}
		if !found || d.Before(next) {
			next, found = d, true
		}
	}
	return next, found
}

func (s *Set) Stats() []Stats {
	out := make([]Stats, 0, len(s.ordered))
	for _, b := range s.ordered {
		out = append(out, b.Stats())
	}
	return out
}
