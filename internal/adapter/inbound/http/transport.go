package http

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// ServerFactory builds the MCP server behind one session.
type ServerFactory interface {
	New(sess *session.Session) *mcp.Server
}

// HTTPTransport is the inbound adapter that serves event streams and
// routes posted messages to them.
type HTTPTransport struct {
	lifecycle       *service.SessionLifecycle
	tools           ServerFactory
	server          *http.Server
	addr            string
	allowedOrigins  []string
	certFile        string
	keyFile         string
	logger          *slog.Logger
	registry        *prometheus.Registry
	metrics         *Metrics
	healthChecker   *HealthChecker
	shutdownTimeout time.Duration
	listener        net.Listener
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "0.0.0.0:3001".
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithListener serves on an existing listener instead of WithAddr.
func WithListener(l net.Listener) Option {
	return func(t *HTTPTransport) {
		t.listener = l
	}
}

// WithTLS enables TLS with the provided certificate and key files.
// If not set, the server runs without TLS (plain HTTP).
func WithTLS(certFile, keyFile string) Option {
	return func(t *HTTPTransport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithAllowedOrigins sets the CORS allowed origins.
// Example: []string{"https://example.com", "http://localhost:3000"}
func WithAllowedOrigins(origins []string) Option {
	return func(t *HTTPTransport) {
		t.allowedOrigins = origins
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithMetrics uses metrics registered on reg instead of a private registry.
func WithMetrics(reg *prometheus.Registry, metrics *Metrics) Option {
	return func(t *HTTPTransport) {
		t.registry = reg
		t.metrics = metrics
	}
}

// WithHealthChecker sets the health checker for the /healthz endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.shutdownTimeout = d
		}
	}
}

// NewHTTPTransport creates the transport over lifecycle, with tools building
// the per-session MCP servers.
func NewHTTPTransport(lifecycle *service.SessionLifecycle, tools ServerFactory, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		lifecycle:       lifecycle,
		tools:           tools,
		addr:            "0.0.0.0:3001",
		allowedOrigins:  []string{"*"},
		logger:          slog.Default(),
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.metrics == nil {
		t.registry = NewRegistry()
		t.metrics = NewMetrics(t.registry)
	}

	return t
}

// Metrics returns the transport's metrics.
func (t *HTTPTransport) Metrics() *Metrics {
	return t.metrics
}

// Handler builds the routed handler with the full middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware order (outermost first):
	// 1. Metrics - record duration and status, track written headers
	// 2. RequestID - extract/generate request ID and enrich logger
	// 3. RealIP - extract client IP from proxy headers
	// 4. Recoverer - turn handler panics into 500s
	// 5. CORS - answer preflights, allow the credential headers
	r.Use(MetricsMiddleware(t.metrics))
	r.Use(RequestIDMiddleware(t.logger))
	r.Use(RealIPMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: t.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Request-ID",
			credentials.HeaderBrowserbaseAPIKey,
			credentials.HeaderBrowserbaseProjectID,
			credentials.HeaderOpenAIAPIKey,
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Posted messages are forwarded raw.
	r.Post(MessagesPath, t.handleMessage)

	r.Group(func(r chi.Router) {
		r.Use(JSONBody)

		r.Get(StreamPath, t.handleStream)
		r.Method(http.MethodGet, "/health", healthHandler())
		if t.healthChecker != nil {
			r.Method(http.MethodGet, "/healthz", t.healthChecker.Handler())
		} else {
			r.Method(http.MethodGet, "/healthz", NewHealthChecker(t.lifecycle.Registry(), nil, nil, "").Handler())
		}
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
			Registry: t.registry,
		}))
	})

	return r
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: event streams stay open.
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	ln := t.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", t.addr)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", ln.Addr().String())
			err = t.server.ServeTLS(ln, t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", ln.Addr().String())
			err = t.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown tears down every session, then stops the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()

	// Hanging streams only return once their session is gone.
	if err := t.lifecycle.Shutdown(ctx); err != nil {
		t.logger.Error("session teardown incomplete", "error", err)
	}

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
