package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// handleStream opens an event stream and keeps it registered until one of
// its terminal conditions fires.
func (t *HTTPTransport) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := LoggerFromContext(ctx)

	creds := credentials.FromRequest(r)
	if !creds.Complete() {
		logger.Warn("stream rejected: missing credentials", "missing", creds.Missing())
		writeJSONError(w, http.StatusUnauthorized, credentials.MissingMessage())
		return
	}

	handle := newSSEHandle(w)

	id, err := session.GenerateID()
	if err != nil {
		_ = handle.Close()
		logger.Error("session id generation failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create session: "+err.Error())
		return
	}
	handle.bind(MessagesPath + "?" + sessionIDParam + "=" + url.QueryEscape(id))

	sess := session.New(id, handle, w, creds)
	handle.own(sess)
	if err := t.lifecycle.Open(sess); err != nil {
		_ = handle.Close()
		logger.Error("session registration failed", "session_id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to register session: "+err.Error())
		return
	}
	logger = logger.With("session_id", id)

	setStreamHeaders(sess.Sink)

	ss, err := t.tools.New(sess).Connect(ctx, handle.transport, nil)
	if err != nil {
		logger.Error("stream handshake failed", "error", err)
		t.lifecycle.Teardown(ctx, sess, service.ReasonHandshake)
		if !headersSent(sess.Sink) {
			writeJSONError(sess.Sink, http.StatusInternalServerError, "failed to open stream: "+err.Error())
		}
		return
	}
	handle.attach(ss)

	waitErr := make(chan error, 1)
	go func() { waitErr <- ss.Wait() }()

	var reason service.TeardownReason
	select {
	case <-ctx.Done():
		reason = service.ReasonDisconnect
	case err := <-waitErr:
		if err == nil || errors.Is(err, io.EOF) {
			reason = service.ReasonClose
		} else {
			logger.Warn("stream failed", "error", err)
			reason = service.ReasonError
		}
	case <-sess.Done():
		// Torn down elsewhere, typically on shutdown.
		return
	}

	t.lifecycle.Teardown(ctx, sess, reason)
}
