package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/ratelimit"
)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// apiError maps a non-2xx response to the client error taxonomy.
func apiError(status int, headers http.Header, body []byte, key core.RateLimitKey) error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)
	message := strings.TrimSpace(parsed.Message)
	metadata := map[string]any{"status_code": status}

	switch status {
	case http.StatusUnauthorized:
		return goerrors.New("Authentication failed: "+firstNonEmpty(message, "Invalid API key"), goerrors.CategoryAuth).
			WithCode(status).
			WithTextCode(core.ErrorUnauthorized).
			WithMetadata(metadata)
	case http.StatusForbidden:
		return goerrors.New("Permission denied: "+firstNonEmpty(message, "Insufficient scope or quota exceeded"), goerrors.CategoryAuthz).
			WithCode(status).
			WithTextCode(core.ErrorForbidden).
			WithMetadata(metadata)
	case http.StatusTooManyRequests:
		retryAfter, ok := ratelimit.RetryAfterFromBody(body)
		if !ok {
			snapshot := ratelimit.ParseSnapshot(headers, time.Now().UTC())
			if snapshot.RetryAfter != nil {
				retryAfter, ok = *snapshot.RetryAfter, true
			}
		}
		if !ok {
			retryAfter = ratelimit.DefaultRetryAfter
		}
		return ratelimit.ThrottledError{
			Key:        key,
			Message:    firstNonEmpty(message, strings.TrimSpace(parsed.Error), "Too many requests"),
			RetryAfter: retryAfter,
		}.ToServiceError()
	default:
		detail := firstNonEmpty(message, strings.TrimSpace(parsed.Error), http.StatusText(status))
		return goerrors.New(fmt.Sprintf("API error (%d): %s", status, detail), goerrors.CategoryExternal).
			WithCode(status).
			WithTextCode(core.ErrorAPI).
			WithMetadata(metadata)
	}
}

var retryAfterMessage = regexp.MustCompile(`Retry after (\d+)s`)

// RetryAfter reports how long the API asked the caller to wait, for errors
// returned on a 429.
func RetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var throttled ratelimit.ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		return throttled.RetryAfter, true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == core.ErrorRateLimited {
		if match := retryAfterMessage.FindStringSubmatch(rich.Message); len(match) == 2 {
			if seconds, convErr := strconv.Atoi(match[1]); convErr == nil {
				return time.Duration(seconds) * time.Second, true
			}
		}
	}
	return 0, false
}

func clientBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

func clientValidationError(field string, message string) error {
	return goerrors.NewValidation("client: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
