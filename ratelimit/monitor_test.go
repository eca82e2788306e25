package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-whatsflow/core"
)

func TestParseSnapshot(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	headers := http.Header{}
	headers.Set("x-ratelimit-limit", "100")
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", "1700000045")
	headers.Set("Retry-After", "12")

	snapshot := ParseSnapshot(headers, now)
	if !snapshot.HasLimit || snapshot.Limit != 100 {
		t.Fatalf("expected limit 100, got %+v", snapshot)
	}
	if !snapshot.HasRemaining || snapshot.Remaining != 0 {
		t.Fatalf("expected remaining 0 to be reported, got %+v", snapshot)
	}
	if snapshot.ResetAt == nil || !snapshot.ResetAt.Equal(now.Add(45*time.Second)) {
		t.Fatalf("unexpected reset at %+v", snapshot.ResetAt)
	}
	if snapshot.RetryAfter == nil || *snapshot.RetryAfter != 12*time.Second {
		t.Fatalf("unexpected retry after %+v", snapshot.RetryAfter)
	}
	if !ParseSnapshot(http.Header{}, now).Empty() {
		t.Fatalf("expected empty snapshot without headers")
	}
}

func TestParseSnapshot_RetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	headers := http.Header{}
	headers.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))

	snapshot := ParseSnapshot(headers, now)
	if snapshot.RetryAfter == nil || *snapshot.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s from http date, got %+v", snapshot.RetryAfter)
	}
}

func TestRetryAfterFromBody(t *testing.T) {
	if got, ok := RetryAfterFromBody([]byte(`{"error":"Too many requests","retryAfter":42}`)); !ok || got != 42*time.Second {
		t.Fatalf("expected 42s, got %s %v", got, ok)
	}
	for _, body := range []string{``, `{}`, `{"retryAfter":0}`, `not json`} {
		if _, ok := RetryAfterFromBody([]byte(body)); ok {
			t.Fatalf("expected %q to have no retry after", body)
		}
	}
}

func TestMonitor_ObservePersistsStateAndWarnsWhenLow(t *testing.T) {
	logger := &warnLogger{}
	store := NewMemoryStateStore()
	monitor := NewMonitor(store, logger)
	now := time.Unix(1_700_000_000, 0).UTC()
	monitor.Now = func() time.Time { return now }
	key := core.RateLimitKey{APIKeyID: "key_1", Bucket: "Public_API"}

	headers := http.Header{}
	headers.Set(HeaderLimit, "100")
	headers.Set(HeaderRemaining, "50")
	if _, err := monitor.Observe(context.Background(), key, http.StatusOK, headers); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(logger.messages()) != 0 {
		t.Fatalf("expected no warning with plenty remaining, got %v", logger.messages())
	}

	headers.Set(HeaderRemaining, "9")
	if _, err := monitor.Observe(context.Background(), key, http.StatusOK, headers); err != nil {
		t.Fatalf("observe: %v", err)
	}
	messages := logger.messages()
	if len(messages) != 1 || messages[0] != "Low rate limit: 9/100 remaining" {
		t.Fatalf("expected low rate limit warning, got %v", messages)
	}

	state, err := monitor.State(context.Background(), core.RateLimitKey{APIKeyID: "key_1", Bucket: "public_api"})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Remaining != 9 || state.Limit != 100 || state.LastStatus != http.StatusOK {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestMonitor_TooManyRequestsOpensThrottleWindow(t *testing.T) {
	logger := &warnLogger{}
	monitor := NewMonitor(nil, logger)
	now := time.Unix(1_700_000_000, 0).UTC()
	monitor.Now = func() time.Time { return now }
	key := core.RateLimitKey{APIKeyID: "key_1", Bucket: "public_api"}

	state, err := monitor.Observe(context.Background(), key, http.StatusTooManyRequests, http.Header{})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(now.Add(DefaultRetryAfter)) {
		t.Fatalf("expected default 60s window, got %+v", state.ThrottledUntil)
	}
	if messages := logger.messages(); len(messages) != 1 || !strings.HasPrefix(messages[0], "Rate limited. Retry after 60 seconds") {
		t.Fatalf("expected rate limited warning, got %v", messages)
	}

	err = monitor.Check(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %v", err)
	}
	if throttled.RetryAfter != DefaultRetryAfter {
		t.Fatalf("expected 60s retry after, got %s", throttled.RetryAfter)
	}

	now = now.Add(61 * time.Second)
	if err := monitor.Check(context.Background(), key); err != nil {
		t.Fatalf("expected window to close, got %v", err)
	}

	if _, err := monitor.Observe(context.Background(), key, http.StatusOK, http.Header{}); err != nil {
		t.Fatalf("observe: %v", err)
	}
	state, _ = monitor.State(context.Background(), key)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to reset throttle state, got %+v", state)
	}
}

func TestMonitor_CheckWithoutStateAllows(t *testing.T) {
	monitor := NewMonitor(nil, nil)
	if err := monitor.Check(context.Background(), core.RateLimitKey{APIKeyID: "unknown"}); err != nil {
		t.Fatalf("expected no error without state, got %v", err)
	}
}

func TestThrottledError_ToServiceError(t *testing.T) {
	err := ThrottledError{Message: "Too many requests", RetryAfter: 1500 * time.Millisecond}
	if got := err.Error(); got != "Rate limit exceeded: Too many requests. Retry after 2s" {
		t.Fatalf("unexpected message %q", got)
	}
	mapped := err.ToServiceError()
	if mapped.TextCode != core.ErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.ErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
}

type warnLogger struct {
	mu    sync.Mutex
	warns []string
}

var _ glog.Logger = (*warnLogger)(nil)

func (l *warnLogger) Trace(string, ...any) {}
func (l *warnLogger) Debug(string, ...any) {}
func (l *warnLogger) Info(string, ...any)  {}
func (l *warnLogger) Error(string, ...any) {}
func (l *warnLogger) Fatal(string, ...any) {}

func (l *warnLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *warnLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
