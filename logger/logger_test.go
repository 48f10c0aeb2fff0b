package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "feedflow.log")
	log := Logger()
	if err := log.Configure("debug", "text", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !log.IsLevelEnabled(logrus.DebugLevel) {
		t.Fatalf("expected debug level enabled")
	}
}

func TestLogPerformanceEntry(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)

	LogPerformanceEntry(log.WithFields(Fields{"destination": "flow_alerts"}), "buffer", "flush", 1500*time.Microsecond, nil)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if decoded["operation"] != "flush" || decoded["component"] != "buffer" || decoded["destination"] != "flow_alerts" {
		t.Fatalf("unexpected fields %v", decoded)
	}
	if decoded["duration_ms"] != 1.5 {
		t.Fatalf("expected 1.5ms, got %v", decoded["duration_ms"])
	}
}

func TestJSONOutputUsesRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.WithComponent("router").Info("hello")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if decoded["message"] != "hello" {
		t.Fatalf("expected message key, got %v", decoded)
	}
	if decoded["component"] != "router" {
		t.Fatalf("expected component key, got %v", decoded)
	}
	if _, ok := decoded["timestamp"]; !ok {
		t.Fatalf("expected timestamp key, got %v", decoded)
	}
}

func TestWarnCountsPerComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	log.WithComponent("warn_counter_test").Warn("one")
	log.WithComponent("warn_counter_test").Warn("two")

	v, ok := warnsByComponent.Load("warn_counter_test")
	if !ok {
		t.Fatalf("expected warn counter for component")
	}
	if got := atomic.LoadInt64(v.(*int64)); got != 2 {
		t.Fatalf("expected 2 warnings, got %d", got)
	}
}

func TestRecordFrameAndFlush(t *testing.T) {
	RecordFrame("report_test", "delivered")
	RecordFrame("report_test", "skipped")
	RecordFrame("report_test", "malformed")
	RecordFlush("report_test", 7)

	ds := destination("report_test")
	if ds.delivered != 1 || ds.skipped != 1 || ds.malformed != 1 {
		t.Fatalf("unexpected frame counters: %+v", ds)
	}
	if ds.flushed != 7 {
		t.Fatalf("expected 7 flushed records, got %d", ds.flushed)
	}
}
