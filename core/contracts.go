package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// InboundRequest is a webhook call as seen by verifiers, before any decoding.
type InboundRequest struct {
	Path       string
	Headers    map[string]string
	Body       []byte
	DeliveryID string
	Event      string
	ReceivedAt time.Time
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

type TransportAdapter interface {
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// RateLimitKey identifies the bucket a set of rate-limit headers applies to.
type RateLimitKey struct {
	APIKeyID string
	Bucket   string
}

type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}
