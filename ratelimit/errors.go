package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
)

// ThrottledError says the API refused a call until RetryAfter has passed.
type ThrottledError struct {
	Key        core.RateLimitKey
	Message    string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "Too many requests"
	}
	return fmt.Sprintf("Rate limit exceeded: %s. Retry after %ds", message, e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds up so callers never retry early.
func (e ThrottledError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"retry_after_s": e.RetryAfterSeconds(),
	}
	if bucket := strings.TrimSpace(e.Key.Bucket); bucket != "" {
		metadata["bucket"] = bucket
	}
	return goerrors.Wrap(e, goerrors.CategoryRateLimit, e.Error()).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited).
		WithMetadata(metadata)
}
