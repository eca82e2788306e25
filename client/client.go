package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/ratelimit"
	"github.com/goliatone/go-whatsflow/transport"
)

const (
	DefaultUserAgent = "go-whatsflow/1.0"
	RateLimitBucket  = "public_api"

	liveKeyPrefix = "wf_live_"
	testKeyPrefix = "wf_test_"
)

// Client calls the WhatsFlow public API. It never retries; rate-limit
// headers are recorded on the monitor so callers can back off themselves.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient transport.HTTPDoer
	transport  core.TransportAdapter
	timeout    time.Duration
	userAgent  string
	logger     core.Logger
	monitor    *ratelimit.Monitor
	rateKey    core.RateLimitKey
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithHTTPClient(httpClient transport.HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTransport replaces the REST adapter entirely; WithHTTPClient is then
// ignored.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(c *Client) {
		c.transport = adapter
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRateLimitMonitor(monitor *ratelimit.Monitor) Option {
	return func(c *Client) {
		c.monitor = monitor
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, clientBadInput("API key is required")
	}
	if !strings.HasPrefix(apiKey, liveKeyPrefix) && !strings.HasPrefix(apiKey, testKeyPrefix) {
		return nil, clientBadInput("Invalid API key format. Must start with wf_live_ or wf_test_")
	}

	c := &Client{
		apiKey:    apiKey,
		baseURL:   core.DefaultBaseURL,
		timeout:   time.Duration(core.DefaultTimeoutSeconds) * time.Second,
		userAgent: DefaultUserAgent,
		logger:    core.EnsureLogger(nil),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if _, err := url.ParseRequestURI(c.baseURL); err != nil {
		return nil, clientBadInput("invalid base url: " + c.baseURL)
	}
	if c.transport == nil {
		httpClient := c.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: c.timeout}
		}
		c.transport = transport.NewRESTAdapter(httpClient)
	}
	if c.monitor == nil {
		c.monitor = ratelimit.NewMonitor(nil, c.logger)
	}
	c.rateKey = core.RateLimitKey{APIKeyID: KeyFingerprint(apiKey), Bucket: RateLimitBucket}
	return c, nil
}

// NewFromConfig builds a client from the client section of the config.
func NewFromConfig(cfg core.ClientConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout()),
	}
	client, err := New(cfg.APIKey, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if cfg.LowRateLimitThreshold > 0 {
		client.monitor.LowThreshold = cfg.LowRateLimitThreshold
	}
	return client, nil
}

// KeyFingerprint identifies an API key in rate-limit state without storing it.
func KeyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(apiKey)))
	return hex.EncodeToString(sum[:8])
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) RateLimitKey() core.RateLimitKey {
	return c.rateKey
}

func (c *Client) RateLimitMonitor() *ratelimit.Monitor {
	return c.monitor
}

// RateLimitState returns what the last response said about the key's budget.
func (c *Client) RateLimitState(ctx context.Context) (ratelimit.State, error) {
	return c.monitor.State(ctx, c.rateKey)
}

// Throttled returns a ratelimit.ThrottledError while the last 429 window for
// the key is still open. The client never waits on it.
func (c *Client) Throttled(ctx context.Context) error {
	return c.monitor.Check(ctx, c.rateKey)
}

type request struct {
	method string
	path   string
	query  map[string]string
	body   any
}

// do performs the call and returns the raw 2xx body.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, core.NewError("client: not initialized", goerrors.CategoryInternal)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, core.WrapError(err, goerrors.CategoryBadInput, "client: encode request body").
				WithTextCode(core.ErrorBadInput)
		}
		payload = encoded
	}

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: req.method,
		URL:    c.baseURL + req.path,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			"User-Agent":    c.userAgent,
		},
		Query:   req.query,
		Body:    payload,
		Timeout: c.timeout,
	})
	if err != nil {
		core.Log(ctx, c.logger, "error", "whatsflow request failed", map[string]any{
			"method": req.method,
			"path":   req.path,
			"error":  err.Error(),
		})
		return nil, core.MapError(err)
	}

	if c.monitor != nil {
		if _, observeErr := c.monitor.Observe(ctx, c.rateKey, res.StatusCode, res.Headers); observeErr != nil {
			core.Log(ctx, c.logger, "debug", "rate limit state not recorded", map[string]any{"error": observeErr.Error()})
		}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, apiError(res.StatusCode, res.Headers, res.Body, c.rateKey)
	}
	return res.Body, nil
}

type dataEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// fetchData unwraps the `data` member of a success envelope.
func fetchData[T any](ctx context.Context, c *Client, req request) (T, error) {
	var zero T
	body, err := c.do(ctx, req)
	if err != nil {
		return zero, err
	}
	var envelope dataEnvelope[T]
	if err := decodeBody(body, &envelope); err != nil {
		return zero, err
	}
	return envelope.Data, nil
}

// fetchBody decodes the whole success body.
func fetchBody[T any](ctx context.Context, c *Client, req request) (T, error) {
	var out T
	body, err := c.do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := decodeBody(body, &out); err != nil {
		return out, err
	}
	return out, nil
}

func decodeBody(body []byte, out any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.WrapError(err, goerrors.CategoryExternal, "API error: invalid JSON response").
			WithTextCode(core.ErrorAPI)
	}
	return nil
}

func escapeID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
