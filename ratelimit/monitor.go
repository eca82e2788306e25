package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-whatsflow/core"
)

const (
	DefaultLowThreshold = core.DefaultLowRateThreshold
	DefaultRetryAfter   = 60 * time.Second
)

// Monitor records the rate-limit headers of every response and warns when
// the remaining budget runs low. It never blocks or retries a call.
type Monitor struct {
	Store             StateStore
	Logger            core.Logger
	LowThreshold      int
	DefaultRetryAfter time.Duration
	Now               func() time.Time
}

func NewMonitor(store StateStore, logger core.Logger) *Monitor {
	if store == nil {
		store = NewMemoryStateStore()
	}
	return &Monitor{
		Store:             store,
		Logger:            core.EnsureLogger(logger),
		LowThreshold:      DefaultLowThreshold,
		DefaultRetryAfter: DefaultRetryAfter,
		Now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Monitor) Observe(ctx context.Context, key core.RateLimitKey, status int, headers http.Header) (State, error) {
	if m == nil {
		return State{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key = NormalizeKey(key)
	now := m.now()
	snapshot := ParseSnapshot(headers, now)

	state, err := m.load(ctx, key)
	if err != nil {
		return State{}, err
	}
	state.Key = key
	state.LastStatus = status
	state.UpdatedAt = now
	if snapshot.HasLimit {
		state.Limit = snapshot.Limit
	}
	if snapshot.HasRemaining {
		state.Remaining = snapshot.Remaining
	}
	if snapshot.ResetAt != nil {
		state.ResetAt = snapshot.ResetAt
	}
	state.RetryAfter = snapshot.RetryAfter

	if status == http.StatusTooManyRequests {
		state.Attempts++
		delay := m.retryAfter(snapshot)
		until := now.Add(delay)
		state.ThrottledUntil = &until
		core.Log(ctx, m.Logger, "warn", "Rate limited. Retry after "+strconv.Itoa(int(delay.Seconds()))+" seconds", map[string]any{
			"bucket":   key.Bucket,
			"attempts": state.Attempts,
		})
	} else {
		state.Attempts = 0
		state.ThrottledUntil = nil
	}

	if snapshot.HasRemaining && snapshot.Remaining < m.threshold() {
		limit := "?"
		if snapshot.HasLimit {
			limit = strconv.Itoa(snapshot.Limit)
		}
		core.Log(ctx, m.Logger, "warn", "Low rate limit: "+strconv.Itoa(snapshot.Remaining)+"/"+limit+" remaining", map[string]any{
			"bucket":    key.Bucket,
			"remaining": snapshot.Remaining,
		})
	}

	if m.Store != nil {
		if err := m.Store.Upsert(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// State returns the last observed state. Keys never observed return
// ErrStateNotFound.
func (m *Monitor) State(ctx context.Context, key core.RateLimitKey) (State, error) {
	if m == nil || m.Store == nil {
		return State{}, ErrStateNotFound
	}
	return m.Store.Get(ctx, NormalizeKey(key))
}

// Check returns a ThrottledError while a previous 429 window is still open.
func (m *Monitor) Check(ctx context.Context, key core.RateLimitKey) error {
	state, err := m.State(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}
	now := m.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Key: state.Key, RetryAfter: until.Sub(now)}
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) && state.LastStatus == http.StatusTooManyRequests {
		return ThrottledError{Key: state.Key, RetryAfter: state.ResetAt.Sub(now)}
	}
	return nil
}

func (m *Monitor) load(ctx context.Context, key core.RateLimitKey) (State, error) {
	if m.Store == nil {
		return State{Key: key}, nil
	}
	state, err := m.Store.Get(ctx, key)
	if errors.Is(err, ErrStateNotFound) {
		return State{Key: key}, nil
	}
	return state, err
}

func (m *Monitor) retryAfter(snapshot Snapshot) time.Duration {
	if snapshot.RetryAfter != nil && *snapshot.RetryAfter > 0 {
		return *snapshot.RetryAfter
	}
	if m.DefaultRetryAfter > 0 {
		return m.DefaultRetryAfter
	}
	return DefaultRetryAfter
}

func (m *Monitor) threshold() int {
	if m.LowThreshold > 0 {
		return m.LowThreshold
	}
	return DefaultLowThreshold
}

func (m *Monitor) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}
