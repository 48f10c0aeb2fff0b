// Package stream keeps one websocket subscription alive: it dials, joins the
// configured channels, routes every frame into the destination buffers and
// reconnects with backoff when the connection dies.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"feedflow/config"
	"feedflow/internal/backoff"
	"feedflow/internal/buffer"
	"feedflow/internal/metrics"
	"feedflow/internal/router"
	"feedflow/logger"
)

// Options are the connection settings of a Manager.
type Options struct {
	URL              string
	Token            string
	Channels         []string
	IdleTimeout      time.Duration
	PingTimeout      time.Duration
	HandshakeTimeout time.Duration
	MaxAttempts      int
	Backoff          backoff.Policy
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:              cfg.Source.URL,
		Token:            cfg.Source.Token,
		Channels:         cfg.Source.Channels,
		IdleTimeout:      cfg.Source.IdleTimeout,
		PingTimeout:      cfg.Source.PingTimeout,
		HandshakeTimeout: cfg.Source.HandshakeTimeout,
		MaxAttempts:      cfg.Reconnect.MaxAttempts,
		Backoff:          backoff.New(cfg.Reconnect.BaseDelay, cfg.Reconnect.MaxDelay, cfg.Reconnect.Jitter),
	}
}

// Manager owns the connection and, through the router, the buffers. Run is
// the only goroutine that touches buffers while it executes.
type Manager struct {
	opts    Options
	router  *router.Router
	buffers *buffer.Set
	dialer  *websocket.Dialer
	state   atomic.Int32
	log     *logger.Log
}

func New(opts Options, r *router.Router, buffers *buffer.Set, log *logger.Log) *Manager {
	m := &Manager{
		opts:    opts,
		router:  r,
		buffers: buffers,
		dialer:  newDialer(opts.HandshakeTimeout),
		log:     logger.Or(log),
	}
	m.state.Store(int32(StateDisconnected))
	metrics.SetConnectionState(int(StateDisconnected))
	return m
}

// State is safe to call from any goroutine.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State, fields logger.Fields) {
	prev := State(m.state.Swap(int32(s)))
	metrics.SetConnectionState(int(s))
	if prev == s {
		return
	}
	f := logger.Fields{"from": prev.String(), "to": s.String()}
	for k, v := range fields {
		f[k] = v
	}
	m.log.WithComponent("stream").WithFields(f).Info("connection state changed")
}

// Run connects and streams until ctx is cancelled or recovery gives up. On
// cancellation every buffer is flushed once before the connection closes.
func (m *Manager) Run(ctx context.Context) (TerminationReason, error) {
	log := m.log.WithComponent("stream")
	target, err := endpoint(m.opts.URL, m.opts.Token)
	if err != nil {
		// config validation rejects these; only direct callers get here
		log.WithError(err).Error("invalid source url, no connection attempted")
		m.setState(StateClosed, nil)
		return Exhausted, fmt.Errorf("source url: %w", err)
	}

	attempt := 0
	persistFailures := 0
	for {
		if ctx.Err() != nil {
			return m.drain(nil)
		}

		m.setState(StateConnecting, logger.Fields{"attempt": attempt})
		sess, err := m.connect(ctx, target)
		var res loopResult
		if err != nil {
			res = loopResult{kind: resultTransient, err: err}
		} else {
			attempt = 0
			res = m.stream(ctx, sess)
			if res.kind == resultCancelled {
				return m.drain(sess)
			}
			sess.close()
		}

		if ctx.Err() != nil {
			return m.drain(nil)
		}

		if res.persistence {
			persistFailures++
			if persistFailures >= m.opts.MaxAttempts {
				log.WithError(res.err).WithFields(logger.Fields{
					"failures": persistFailures,
				}).Error("sinks keep failing, giving up")
				m.setState(StateClosed, nil)
				return PersistenceFailed, res.err
			}
		} else if err == nil {
			persistFailures = 0
		}

		attempt++
		if attempt >= m.opts.MaxAttempts {
			log.WithError(res.err).WithFields(logger.Fields{
				"attempts": attempt,
			}).Error("reconnect attempts exhausted")
			m.finalFlush()
			m.setState(StateClosed, nil)
			return Exhausted, fmt.Errorf("giving up after %d attempts: %w", attempt, res.err)
		}

		delay := m.opts.Backoff.Delay(attempt)
		m.setState(StateReconnecting, nil)
		log.WithError(res.err).WithFields(logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("reconnecting")
		metrics.IncReconnect()
		logger.RecordReconnect()
		metrics.EmitMetric(m.log, "stream", "reconnect_attempt", attempt, "count", logger.Fields{
			"delay_ms": delay.Milliseconds(),
		})

		if backoff.Wait(ctx, delay) {
			return m.drain(nil)
		}
	}
}

// connect dials and joins every channel. Joins are independent; the session
// is only usable if at least one succeeded.
func (m *Manager) connect(ctx context.Context, target string) (*session, error) {
	log := m.log.WithComponent("stream").WithFields(logger.Fields{"url": redact(target)})

	dialCtx := ctx
	if m.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.opts.HandshakeTimeout)
		defer cancel()
	}
	sess, err := dial(dialCtx, m.dialer, target, uuid.NewString())
	if err != nil {
		log.WithError(err).Warn("connect failed")
		return nil, err
	}

	joined := 0
	for _, ch := range m.opts.Channels {
		if err := sess.join(ch); err != nil {
			log.WithError(err).WithFields(logger.Fields{"channel": ch}).Warn("join failed")
			continue
		}
		joined++
	}
	if joined == 0 && len(m.opts.Channels) > 0 {
		sess.close()
		return nil, errors.New("no channel could be joined")
	}

	m.setState(StateSubscribed, logger.Fields{
		"session":  sess.id,
		"channels": joined,
	})
	sess.start()
	return sess, nil
}

// stream is the receive loop of one session.
func (m *Manager) stream(ctx context.Context, sess *session) loopResult {
	log := m.log.WithComponent("stream").WithFields(logger.Fields{"session": sess.id})
	m.setState(StateStreaming, logger.Fields{"session": sess.id})

	idle := time.NewTimer(m.opts.IdleTimeout)
	defer idle.Stop()
	flush := time.NewTimer(time.Hour)
	flush.Stop()
	defer flush.Stop()
	var pingTimer *time.Timer
	var pingC <-chan time.Time
	defer func() {
		if pingTimer != nil {
			pingTimer.Stop()
		}
	}()

	stopPing := func() {
		if pingTimer != nil {
			pingTimer.Stop()
		}
		pingTimer, pingC = nil, nil
	}
	armFlush := func() {
		if d, ok := m.buffers.NextDeadline(); ok {
			flush.Reset(time.Until(d))
		} else {
			flush.Stop()
		}
	}

	// batches retained from a failed write are retried first
	if err := m.buffers.MaybeFlush(ctx, time.Now()); err != nil {
		return persistenceResult(err)
	}
	armFlush()

	for {
		select {
		case <-ctx.Done():
			return loopResult{kind: resultCancelled}

		case in := <-sess.frames:
			m.router.RouteMessage(in.data, in.receivedAt)
			if err := m.buffers.MaybeFlush(ctx, time.Now()); err != nil {
				return persistenceResult(err)
			}
			stopPing()
			idle.Reset(m.opts.IdleTimeout)
			armFlush()

		case <-flush.C:
			if err := m.buffers.MaybeFlush(ctx, time.Now()); err != nil {
				return persistenceResult(err)
			}
			armFlush()

		case err := <-sess.errs:
			log.WithError(err).Warn("connection lost")
			return m.lost(ctx, err)

		case <-idle.C:
			log.WithFields(logger.Fields{"idle": m.opts.IdleTimeout.String()}).Debug("idle, sending ping")
			if err := sess.ping(); err != nil {
				log.WithError(err).Warn("ping failed")
				return m.lost(ctx, err)
			}
			pingTimer = time.NewTimer(m.opts.PingTimeout)
			pingC = pingTimer.C

		case <-pingC:
			log.WithFields(logger.Fields{"timeout": m.opts.PingTimeout.String()}).Warn("connection silent after ping")
			return m.lost(ctx, errPingTimeout)

		case <-sess.pongs:
			if pingC == nil {
				continue
			}
			stopPing()
			if err := m.buffers.FlushAll(ctx, time.Now(), buffer.TriggerIdle); err != nil {
				return persistenceResult(err)
			}
			idle.Reset(m.opts.IdleTimeout)
			armFlush()
		}
	}
}

// lost flushes everything before the caller reconnects.
func (m *Manager) lost(ctx context.Context, cause error) loopResult {
	if err := m.buffers.FlushAll(ctx, time.Now(), buffer.TriggerConnectionLost); err != nil {
		return loopResult{kind: resultTransient, err: errors.Join(cause, err), persistence: true}
	}
	return loopResult{kind: resultTransient, err: cause}
}

func persistenceResult(err error) loopResult {
	return loopResult{kind: resultTransient, err: err, persistence: true}
}

// drain is the shutdown path: flush once, then close.
func (m *Manager) drain(sess *session) (TerminationReason, error) {
	m.setState(StateDraining, nil)
	err := m.buffers.FlushAll(context.Background(), time.Now(), buffer.TriggerShutdown)
	if err != nil {
		m.log.WithComponent("stream").WithError(err).WithFields(logger.Fields{
			"pending": m.buffers.Pending(),
		}).Error("drain left records unwritten")
	}
	if sess != nil {
		sess.close()
	}
	m.setState(StateClosed, nil)
	return Shutdown, err
}

// finalFlush gives buffered records one last chance before a fatal exit.
func (m *Manager) finalFlush() {
	if m.buffers.Pending() == 0 {
		return
	}
	if err := m.buffers.FlushAll(context.Background(), time.Now(), buffer.TriggerShutdown); err != nil {
		m.log.WithComponent("stream").WithError(err).Error("final flush failed")
	}
}
