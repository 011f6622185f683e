package http

import (
	"encoding/json"
	"net/http"
)

// Paths served by the transport.
const (
	StreamPath   = "/sse"
	MessagesPath = "/messages"
)

// sessionIDParam is the query parameter carrying the session id on posts.
const sessionIDParam = "sessionId"

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeJSONError writes {"error":{"code":status,"message":msg}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: status, Message: msg}})
}

// headersSent reports whether w already committed a status line.
// Writers that cannot tell are assumed unsent.
func headersSent(w http.ResponseWriter) bool {
	type tracker interface{ HeadersSent() bool }
	if t, ok := w.(tracker); ok {
		return t.HeadersSent()
	}
	return false
}

// setStreamHeaders prepares w for a server-sent event stream.
func setStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
