// Package router classifies decoded frames by channel tag, projects payloads
// into typed records and appends them to the owning destination buffer.
package router

import (
	"bytes"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"feedflow/internal/buffer"
	"feedflow/internal/metrics"
	"feedflow/logger"
	"feedflow/models"
)

// Router is driven by the receive loop and shares its goroutine; only the
// outcome counters may be read elsewhere.
type Router struct {
	buffers *buffer.Set
	log     *logger.Log
	// skipped frames are expected (heartbeats, partial payloads) and logged
	// at a bounded rate; malformed frames are logged every time
	skipLog *rate.Limiter
	counts  [3]atomic.Int64
}

func New(buffers *buffer.Set, log *logger.Log) *Router {
	return &Router{
		buffers: buffers,
		log:     logger.Or(log),
		skipLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Decode parses one transport message. Numbers are kept as json.Number so
// large identifiers and timestamps survive intact.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// RouteMessage decodes data and routes the resulting frame. Undecodable
// input is Malformed.
func (r *Router) RouteMessage(data []byte, receivedAt time.Time) Result {
	v, err := Decode(data)
	if err != nil {
		return r.finish(malformed("", "invalid json: "+err.Error()), len(data))
	}
	return r.Route(models.RawFrame{Value: v, Size: len(data), ReceivedAt: receivedAt})
}

// Route classifies frame and, when it carries data for a configured
// destination, appends the projected record to that destination's buffer.
func (r *Router) Route(frame models.RawFrame) Result {
	return r.finish(r.classify(frame), frame.Size)
}

func (r *Router) classify(frame models.RawFrame) Result {
	pair, ok := frame.Value.([]any)
	if !ok || len(pair) != 2 {
		return malformed("", "frame is not a [channel, payload] pair")
	}
	channel, ok := pair[0].(string)
	if !ok {
		return malformed("", "channel tag is not a string")
	}
	payload, ok := pair[1].(map[string]any)
	if !ok {
		return skipped(channel, "", "payload is not an object")
	}
	if _, status := payload["status"]; status {
		if _, ts := payload["timestamp"]; !ts {
			return skipped(channel, "", "control message")
		}
	}

	rt, ok := match(channel)
	if !ok {
		return malformed(channel, "unrecognized channel")
	}
	if k := missing(payload, rt.required); k != "" {
		return skipped(channel, rt.destination, "missing required field "+k)
	}
	buf, ok := r.buffers.Get(rt.destination)
	if !ok {
		return skipped(channel, rt.destination, "no sink configured for destination")
	}

	f := &fields{p: payload}
	rec := rt.project(channel, f)
	if f.err != nil {
		return skipped(channel, rt.destination, f.err.Error())
	}

	at := frame.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	buf.Append(rec, at)
	return delivered(channel, rt.destination)
}

func (r *Router) finish(res Result, size int) Result {
	r.counts[res.Outcome].Add(1)
	dest := string(res.Destination)
	if dest == "" {
		dest = "none"
	}
	metrics.IncFrame(dest, res.Outcome.String())
	logger.RecordFrame(dest, res.Outcome.String())

	switch res.Outcome {
	case Malformed:
		r.log.WithComponent("router").WithFields(logger.Fields{
			"channel": res.Channel,
			"reason":  res.Reason,
			"bytes":   size,
		}).Warn("malformed frame")
	case Skipped:
		if r.skipLog.Allow() {
			r.log.WithComponent("router").WithFields(logger.Fields{
				"channel":     res.Channel,
				"destination": dest,
				"reason":      res.Reason,
			}).Debug("skipped frame")
		}
	}
	return res
}

// Count returns how many frames ended with outcome o.
func (r *Router) Count(o Outcome) int64 {
	if o < Delivered || o > Malformed {
		return 0
	}
	return r.counts[o].Load()
}
