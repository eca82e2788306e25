package core

import (
	"context"
	"sync"
	"testing"
)

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := CloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: CloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := CloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]capturedLog, len(*l.records))
	copy(out, *l.records)
	return out
}

// argsOnlyLogger hides WithFields so Log has to flatten fields into args.
type argsOnlyLogger struct {
	inner *captureLogger
}

func (l argsOnlyLogger) Trace(msg string, args ...any) { l.inner.Trace(msg, args...) }
func (l argsOnlyLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l argsOnlyLogger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l argsOnlyLogger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l argsOnlyLogger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
func (l argsOnlyLogger) Fatal(msg string, args ...any) { l.inner.Fatal(msg, args...) }
func (l argsOnlyLogger) WithContext(context.Context) Logger {
	return l
}

func TestLog_RoutesLevels(t *testing.T) {
	logger := newCaptureLogger()
	ctx := context.Background()

	Log(ctx, logger, "debug", "d", nil)
	Log(ctx, logger, "WARNING", "w", nil)
	Log(ctx, logger, "error", "e", nil)
	Log(ctx, logger, "", "i", nil)

	records := logger.snapshot()
	want := []string{"debug", "warn", "error", "info"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, level := range want {
		if records[i].level != level {
			t.Fatalf("record %d: expected %s, got %s", i, level, records[i].level)
		}
	}
}

func TestLog_AttachesRedactedFields(t *testing.T) {
	logger := newCaptureLogger()
	fields := map[string]any{"delivery_id": "d-1", "secret": "whsec"}

	Log(context.Background(), logger, "info", "delivery accepted", fields)

	records := logger.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	got := records[0].fields
	if got["delivery_id"] != "d-1" || got["secret"] != RedactedValue {
		t.Fatalf("unexpected fields %+v", got)
	}
	if fields["secret"] != "whsec" {
		t.Fatalf("caller fields must not be modified")
	}
}

func TestLog_FlattensFieldsForPlainLoggers(t *testing.T) {
	inner := newCaptureLogger()

	Log(context.Background(), argsOnlyLogger{inner: inner}, "info", "sent", map[string]any{
		"message_id": "m-1",
		"api_key":    "wf_test_x",
	})

	records := inner.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].fields["message_id"] != "m-1" || records[0].fields["api_key"] != RedactedValue {
		t.Fatalf("unexpected fields %+v", records[0].fields)
	}
}

func TestLog_NilLoggerIsNoop(t *testing.T) {
	Log(context.Background(), nil, "info", "ignored", map[string]any{"k": "v"})
	if EnsureLogger(nil) == nil {
		t.Fatalf("expected a nop logger")
	}
}

func TestFlattenFields_SortsKeys(t *testing.T) {
	args := FlattenFields(map[string]any{"b": 2, "a": 1})
	if len(args) != 4 || args[0] != "a" || args[2] != "b" {
		t.Fatalf("unexpected args %+v", args)
	}
}
