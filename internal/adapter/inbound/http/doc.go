// Package http provides the HTTP front door of sessiongate.
//
// Clients open a server-sent event stream and receive a session id in the
// MCP SSE "endpoint" event. Follow-up JSON-RPC messages are posted to the
// announced endpoint and delivered to the stream that owns the id.
//
// # Usage
//
//	transport := http.NewHTTPTransport(lifecycle, toolFactory,
//	    http.WithAddr(":3001"),
//	    http.WithAllowedOrigins([]string{"https://example.com"}),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	GET  /sse                    - Open an event stream (credentials required)
//	POST /messages?sessionId=<id> - Deliver a JSON-RPC message to a stream
//	GET  /health                 - Liveness check, plain "ok"
//	GET  /healthz                - Detailed JSON health
//	GET  /metrics                - Prometheus metrics
//
// # Credentials
//
// A stream is opened with three credentials, each taken from a query
// parameter or, when the parameter is absent, a header:
//
//	browserbase_api_key     / x-browserbase-api-key
//	browserbase_project_id  / x-browserbase-project-id
//	openai_api_key          / x-openai-api-key
//
// Missing credentials are answered with 401 and no stream is opened.
//
// # Message routing
//
//	400 - sessionId missing
//	503 - no open session with that id
//	500 - the stream refused the message; the session stays open
//	202 - accepted, the reply arrives on the stream
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - Duration, status and written-header tracking
//  2. RequestIDMiddleware - X-Request-ID and the request logger
//  3. RealIPMiddleware - Client IP from proxy headers
//  4. Recoverer - Panics become 500
//  5. CORS - Preflights and allowed origins
//  6. JSONBody - Every route except POST /messages
//
// # Shutdown
//
// When the Start context is cancelled every open session is torn down with
// reason "shutdown" before the server stops accepting connections.
package http
