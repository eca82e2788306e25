package gologger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goliatone/go-whatsflow/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesKeyValuePairs(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(zcore))

	logger.Warn("Rate limited. Retry after 30 seconds", "retry_after_s", 30, "bucket", "public_api")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["bucket"] != "public_api" {
		t.Fatalf("expected bucket field, got %#v", fields)
	}
	if fields["retry_after_s"] != int64(30) {
		t.Fatalf("expected retry_after_s field, got %#v", fields["retry_after_s"])
	}
}

func TestZapLogger_WithFieldsAndTraceLevel(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(zcore)).WithFields(map[string]any{"delivery_id": "d-1"})

	logger.Trace("claimed")
	logger.Info("processed")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("expected trace to map to debug, got %s", entries[0].Level)
	}
	for _, entry := range entries {
		if entry.ContextMap()["delivery_id"] != "d-1" {
			t.Fatalf("expected persistent field on %q", entry.Message)
		}
	}
}

func TestProvider_NamesChildLoggers(t *testing.T) {
	zcore, logs := observer.New(zapcore.InfoLevel)
	provider := NewProvider(NewZapLogger(zap.New(zcore)))

	provider.GetLogger("receiver").Info("listening")

	entries := logs.All()
	if len(entries) != 1 || entries[0].LoggerName != "receiver" {
		t.Fatalf("expected named logger entry, got %#v", entries)
	}
}

func TestNew_JSONOutputHonoursLevel(t *testing.T) {
	var out bytes.Buffer
	logger, err := New(core.LogConfig{Level: "warn", Format: "json"}, &out)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", "event", "message.received")
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %q", out.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["msg"] != "kept" || record["event"] != "message.received" {
		t.Fatalf("unexpected record %#v", record)
	}
	if _, ok := record["timestamp"]; !ok {
		t.Fatalf("expected timestamp key, got %#v", record)
	}
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	if _, err := New(core.LogConfig{Level: "loud"}, nil); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := New(core.LogConfig{Format: "xml"}, nil); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestProvider_JobLoggersShareTheZapCore(t *testing.T) {
	zcore, logs := observer.New(zapcore.InfoLevel)
	provider := NewProvider(NewZapLogger(zap.New(zcore)))

	workerLogger, jobLogger := provider.JobLoggers("worker")
	workerLogger.Info("started")
	jobLogger.Info("execution message dead-lettered", "job_id", "whatsflow.event.message.received")
	provider.JobProvider().GetLogger("queue").Info("drained")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected three entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "worker" || entries[1].LoggerName != "worker" {
		t.Fatalf("expected worker logger names, got %q and %q", entries[0].LoggerName, entries[1].LoggerName)
	}
	if entries[1].ContextMap()["job_id"] != "whatsflow.event.message.received" {
		t.Fatalf("expected bridged args, got %#v", entries[1].ContextMap())
	}
	if entries[2].LoggerName != "queue" {
		t.Fatalf("expected queue logger name, got %q", entries[2].LoggerName)
	}
}
