package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

// MessageRejectedError is returned when the stream transport refuses a
// posted message.
type MessageRejectedError struct {
	Status  int
	Message string
}

func (e *MessageRejectedError) Error() string {
	return fmt.Sprintf("message rejected (%d): %s", e.Status, e.Message)
}

// sseHandle adapts the go-sdk SSE server transport to session.Handle.
type sseHandle struct {
	transport *mcp.SSEServerTransport
	owner     atomic.Pointer[session.Session]
	server    atomic.Pointer[mcp.ServerSession]
	closed    atomic.Bool
}

func newSSEHandle(sink http.ResponseWriter) *sseHandle {
	return &sseHandle{transport: &mcp.SSEServerTransport{Response: sink}}
}

// bind sets the endpoint announced in the handshake.
func (h *sseHandle) bind(endpoint string) {
	h.transport.Endpoint = endpoint
}

// own ties the handle to its session so that messages stop flowing as soon
// as teardown begins, before the transport itself is closed.
func (h *sseHandle) own(sess *session.Session) {
	h.owner.Store(sess)
}

// attach records the connected server session so Close can end it.
// A session attached after Close is closed at once.
func (h *sseHandle) attach(ss *mcp.ServerSession) {
	h.server.Store(ss)
	if h.closed.Load() {
		_ = ss.Close()
	}
}

// HandleMessage forwards one posted message to the transport. The
// transport's answer is buffered so that a refusal can be reported as an
// error instead of reaching the client verbatim.
func (h *sseHandle) HandleMessage(w http.ResponseWriter, r *http.Request) error {
	if sess := h.owner.Load(); sess != nil && !sess.Routable() {
		return session.ErrSessionClosing
	}

	buf := newBufferedResponse()
	h.transport.ServeHTTP(buf, r)

	if buf.status >= http.StatusBadRequest {
		return &MessageRejectedError{Status: buf.status, Message: strings.TrimSpace(buf.body.String())}
	}

	for k, v := range buf.header {
		w.Header()[k] = v
	}
	w.WriteHeader(buf.status)
	_, err := w.Write(buf.body.Bytes())
	return err
}

// Close ends the server session, which closes the transport.
func (h *sseHandle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	if ss := h.server.Load(); ss != nil {
		return ss.Close()
	}
	return nil
}

var _ session.Handle = (*sseHandle)(nil)

// bufferedResponse is an in-memory http.ResponseWriter.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.wrote {
		return
	}
	b.status = code
	b.wrote = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
