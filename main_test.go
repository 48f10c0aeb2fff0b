package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"feedflow/config"
	"feedflow/internal/shutdown"
	"feedflow/models"
)

func TestOpenBuffersFollowsRoutingOrder(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Sinks = map[string]config.SinkConfig{
		"spot_greeks": {Type: config.SinkTypeFile, Path: filepath.Join(dir, "gex.jsonl"), BatchSize: 10},
		"flow_alerts": {Type: config.SinkTypeSQLite, Path: filepath.Join(dir, "alerts.db")},
	}
	coord := shutdown.New(time.Second, nil)
	defer coord.Close()

	set, err := openBuffers(context.Background(), &cfg, coord, nil)
	if err != nil {
		t.Fatalf("openBuffers: %v", err)
	}
	bufs := set.Buffers()
	if len(bufs) != 2 {
		t.Fatalf("expected 2 buffers, got %d", len(bufs))
	}
	if bufs[0].Destination() != models.DestinationFlowAlerts || bufs[1].Destination() != models.DestinationSpotGreeks {
		t.Fatalf("unexpected order %s, %s", bufs[0].Destination(), bufs[1].Destination())
	}
}

func TestOpenBuffersRejectsUnknownDestination(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = map[string]config.SinkConfig{
		"trades": {Type: config.SinkTypeFile, Path: filepath.Join(t.TempDir(), "x")},
	}
	coord := shutdown.New(time.Second, nil)
	defer coord.Close()

	if _, err := openBuffers(context.Background(), &cfg, coord, nil); err == nil || !strings.Contains(err.Error(), "unknown destination") {
		t.Fatalf("expected unknown destination error, got %v", err)
	}
}

func TestCheckChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Sinks = map[string]config.SinkConfig{
		"flow_alerts": {Type: config.SinkTypeFile, Path: filepath.Join(t.TempDir(), "a.jsonl")},
	}
	coord := shutdown.New(time.Second, nil)
	defer coord.Close()
	set, err := openBuffers(context.Background(), &cfg, coord, nil)
	if err != nil {
		t.Fatalf("openBuffers: %v", err)
	}

	if err := checkChannels([]string{"flow-alerts"}, set); err != nil {
		t.Fatalf("flow-alerts should be accepted: %v", err)
	}
	if err := checkChannels([]string{"gex:SPY"}, set); err == nil || !strings.Contains(err.Error(), "no sink") {
		t.Fatalf("expected missing sink error, got %v", err)
	}
	if err := checkChannels([]string{"news"}, set); err == nil || !strings.Contains(err.Error(), "no known destination") {
		t.Fatalf("expected unknown channel error, got %v", err)
	}
}
