// Package shutdown turns termination signals into context cancellation and
// releases resources once the ingestion loop has drained.
package shutdown

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"feedflow/logger"
)

// ErrTimeout is returned by Run when the drain outlives the timeout.
var ErrTimeout = errors.New("graceful shutdown timeout exceeded")

type namedCloser struct {
	name string
	c    io.Closer
}

type Coordinator struct {
	timeout time.Duration
	log     *logger.Log

	mu      sync.Mutex
	closers []namedCloser
}

func New(timeout time.Duration, log *logger.Log) *Coordinator {
	return &Coordinator{timeout: timeout, log: logger.Or(log)}
}

// Notify returns a context cancelled by the first of signals, SIGINT and
// SIGTERM when none are given.
func (c *Coordinator) Notify(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			c.log.WithComponent("shutdown").WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Register adds a resource closed after the run finishes. Resources close in
// reverse registration order.
func (c *Coordinator) Register(name string, closer io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, namedCloser{name: name, c: closer})
}

// Run executes fn and closes every registered resource afterwards. Once ctx
// is cancelled fn gets the configured timeout to drain; resources are closed
// either way.
func (c *Coordinator) Run(ctx context.Context, fn func(context.Context) error) error {
	log := c.log.WithComponent("shutdown")
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info("starting graceful shutdown")
		timer := time.NewTimer(c.timeout)
		select {
		case err = <-done:
			timer.Stop()
			log.Info("graceful shutdown completed")
		case <-timer.C:
			log.WithFields(logger.Fields{"timeout": c.timeout.String()}).Warn("graceful shutdown timeout exceeded")
			err = ErrTimeout
		}
	}

	if cerr := c.closeAll(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Close releases registered resources without running anything, for
// startup failures.
func (c *Coordinator) Close() error { return c.closeAll() }

func (c *Coordinator) closeAll() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		nc := closers[i]
		if err := nc.c.Close(); err != nil {
			c.log.WithComponent("shutdown").WithError(err).WithFields(logger.Fields{"resource": nc.name}).Warn("close failed")
			errs = append(errs, err)
			continue
		}
		c.log.WithComponent("shutdown").WithFields(logger.Fields{"resource": nc.name}).Debug("closed")
	}
	return errors.Join(errs...)
}
