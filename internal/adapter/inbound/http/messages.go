package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/pkg/mcp"
)

// maxMessageBodySize bounds a posted JSON-RPC message (4 MB).
const maxMessageBodySize = 4 << 20

// handleMessage routes one posted message to the stream that owns its
// session id. The body is only peeked at for logging and metrics.
func (t *HTTPTransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	id := r.URL.Query().Get(sessionIDParam)
	if id == "" {
		t.metrics.MessagesTotal.WithLabelValues(methodNone, OutcomeMissingID).Inc()
		writeJSONError(w, http.StatusBadRequest, "Missing sessionId parameter")
		return
	}

	sess, ok := t.lifecycle.Registry().Lookup(id)
	if !ok || !sess.Routable() {
		t.metrics.MessagesTotal.WithLabelValues(methodNone, OutcomeNoSession).Inc()
		logger.Debug("message for unknown session", "session_id", id)
		writeJSONError(w, http.StatusServiceUnavailable, "No active session for sessionId: "+id)
		return
	}
	logger = logger.With("session_id", id)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "message body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read message body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	msg := mcp.Peek(body)
	method := msg.Label()
	logger = logger.With(msg.LogAttrs()...)

	if err := sess.Handle.HandleMessage(w, r); err != nil {
		if errors.Is(err, session.ErrSessionClosing) {
			t.metrics.MessagesTotal.WithLabelValues(method, OutcomeNoSession).Inc()
			logger.Debug("message for closing session")
			writeJSONError(w, http.StatusServiceUnavailable, "No active session for sessionId: "+id)
			return
		}
		t.metrics.MessagesTotal.WithLabelValues(method, OutcomeFailed).Inc()
		logger.Warn("message handling failed", "error", err)
		if !headersSent(w) {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	t.metrics.MessagesTotal.WithLabelValues(method, OutcomeAccepted).Inc()
	logger.Debug("message forwarded", "bytes", len(body))
}
