package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Snapshot is what one response said about the rate limit. Zero-valued
// fields were absent or unparsable; the Has* flags tell them apart from 0.
type Snapshot struct {
	Limit        int
	Remaining    int
	HasLimit     bool
	HasRemaining bool
	ResetAt      *time.Time
	RetryAfter   *time.Duration
}

func (s Snapshot) Empty() bool {
	return !s.HasLimit && !s.HasRemaining && s.ResetAt == nil && s.RetryAfter == nil
}

// ParseSnapshot reads the rate-limit headers. Retry-After may be delta
// seconds or an HTTP date relative to now.
func ParseSnapshot(headers http.Header, now time.Time) Snapshot {
	snapshot := Snapshot{}
	if limit, ok := parseHeaderInt(headers, HeaderLimit); ok {
		snapshot.Limit = limit
		snapshot.HasLimit = true
	}
	if remaining, ok := parseHeaderInt(headers, HeaderRemaining); ok {
		snapshot.Remaining = remaining
		snapshot.HasRemaining = true
	}
	if resetAt, ok := parseHeaderResetAt(headers); ok {
		snapshot.ResetAt = &resetAt
	}
	if retryAfter, ok := parseRetryAfter(headers.Get(HeaderRetryAfter), now); ok {
		snapshot.RetryAfter = &retryAfter
	}
	return snapshot
}

// RetryAfterFromBody reads the `retryAfter` seconds field of an error body.
func RetryAfterFromBody(body []byte) (time.Duration, bool) {
	if len(body) == 0 {
		return 0, false
	}
	var payload struct {
		RetryAfter json.Number `json:"retryAfter"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, false
	}
	seconds, err := payload.RetryAfter.Float64()
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func parseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil {
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

func parseHeaderInt(headers http.Header, key string) (int, bool) {
	value := strings.TrimSpace(headers.Get(key))
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return parsed, true
}

func parseHeaderResetAt(headers http.Header) (time.Time, bool) {
	value := strings.TrimSpace(headers.Get(HeaderReset))
	if value == "" {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := http.ParseTime(value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}
