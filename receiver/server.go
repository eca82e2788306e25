package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/inbound"
	"github.com/goliatone/go-whatsflow/webhooks"
)

// EventEnqueuer hands a verified event to a job queue instead of running the
// handler inline.
type EventEnqueuer interface {
	EnqueueEvent(ctx context.Context, event inbound.Event) error
}

type Server struct {
	cfg        Config
	verifier   webhooks.Verifier
	dispatcher *inbound.Dispatcher
	ledger     webhooks.DeliveryLedger
	enqueuer   EventEnqueuer
	logger     core.Logger
	now        func() time.Time
	engine     *gin.Engine
}

type Option func(*Server)

func WithLedger(ledger webhooks.DeliveryLedger) Option {
	return func(s *Server) {
		if ledger != nil {
			s.ledger = ledger
		}
	}
}

// WithEnqueuer switches the receiver to async mode.
func WithEnqueuer(enqueuer EventEnqueuer) Option {
	return func(s *Server) {
		s.enqueuer = enqueuer
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithVerifier(verifier webhooks.Verifier) Option {
	return func(s *Server) {
		if verifier != nil {
			s.verifier = verifier
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates cfg and builds the routes. A nil dispatcher logs every event
// with inbound.LoggingHandlers.
func New(cfg Config, dispatcher *inbound.Dispatcher, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: core.EnsureLogger(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.verifier == nil {
		s.verifier = webhooks.NewHeaderVerifier(cfg.Secret)
	}
	if s.ledger == nil {
		s.ledger = webhooks.NewMemoryLedger()
	}
	if dispatcher == nil {
		dispatcher = inbound.NewDispatcher(inbound.LoggingHandlers(s.logger), s.logger)
	}
	s.dispatcher = dispatcher

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog(s.logger))
	engine.POST(cfg.Path, s.handleWebhook)
	engine.GET("/health", s.handleHealth)
	engine.POST("/test", s.handleTest)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found", "path": c.Request.URL.Path})
	})
	s.engine = engine
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Config() Config {
	return s.cfg
}

// Run listens on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve answers on listener until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		core.Log(ctx, s.logger, "info", "webhook receiver listening", map[string]any{
			"addr":         listener.Addr().String(),
			"webhook_path": s.cfg.Path,
			"async":        s.enqueuer != nil,
		})
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	core.Log(context.Background(), s.logger, "info", "shutting down webhook receiver", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	signature := c.GetHeader(core.HeaderSignature)
	deliveryID := strings.TrimSpace(c.GetHeader(core.HeaderDeliveryID))
	eventHeader := strings.TrimSpace(c.GetHeader(core.HeaderEvent))
	fields := map[string]any{
		"event":       eventHeader,
		"delivery_id": deliveryID,
		"request_id":  c.GetString(requestIDContext),
	}
	core.Log(ctx, s.logger, "info", "webhook received", fields)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	err = s.verifier.Verify(ctx, core.InboundRequest{
		Path:       c.Request.URL.Path,
		Headers:    map[string]string{core.HeaderSignature: signature},
		Body:       body,
		DeliveryID: deliveryID,
		Event:      eventHeader,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		core.Log(ctx, s.logger, "warn", "invalid signature, rejecting webhook", fields)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	envelope, err := inbound.DecodeEnvelope(body)
	if err != nil {
		core.Log(ctx, s.logger, "warn", "signed webhook body is not an event envelope", fields)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	event := inbound.EventFromEnvelope(envelope, deliveryID)
	fields["event"] = event.Kind.String()

	if deliveryID != "" {
		_, duplicate, claimErr := s.ledger.Claim(ctx, deliveryID, event.Kind.String(), body)
		switch {
		case claimErr != nil:
			fields["error"] = claimErr.Error()
			core.Log(ctx, s.logger, "warn", "delivery ledger unavailable, processing without dedupe", fields)
			delete(fields, "error")
		case duplicate:
			core.Log(ctx, s.logger, "info", "duplicate delivery skipped", fields)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Duplicate delivery", "duplicate": true})
			return
		}
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueEvent(ctx, event); err != nil {
			s.markFailed(ctx, deliveryID, err)
			c.JSON(http.StatusOK, gin.H{"success": false, "error": errorMessage(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook queued"})
		return
	}

	// Handler failures still answer 200 so the sender does not retry a
	// delivery the receiver already accepted.
	if _, err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.markFailed(ctx, deliveryID, err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": errorMessage(err)})
		return
	}
	if deliveryID != "" {
		if err := s.ledger.Complete(ctx, deliveryID); err != nil {
			core.Log(ctx, s.logger, "warn", "delivery ledger complete failed", map[string]any{
				"delivery_id": deliveryID,
				"error":       err.Error(),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook processed"})
}

func (s *Server) markFailed(ctx context.Context, deliveryID string, cause error) {
	if deliveryID == "" {
		return
	}
	if err := s.ledger.Fail(ctx, deliveryID, errorMessage(cause)); err != nil {
		core.Log(ctx, s.logger, "warn", "delivery ledger fail failed", map[string]any{
			"delivery_id": deliveryID,
			"error":       err.Error(),
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// handleTest echoes what it received, for checking tunnels and proxies.
func (s *Server) handleTest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}
	headers := flattenHeaders(c.Request.Header)
	var decoded any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			decoded = string(body)
		}
	}
	core.Log(c.Request.Context(), s.logger, "info", "test request received", map[string]any{
		"headers": headers,
		"body":    string(body),
	})
	c.JSON(http.StatusOK, gin.H{"received": true, "headers": headers, "body": decoded})
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return out
}
