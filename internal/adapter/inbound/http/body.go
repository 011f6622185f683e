package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// maxJSONBodySize is the maximum parsed request body size (1 MiB).
const maxJSONBodySize = 1 << 20

type jsonBodyContextKey struct{}

// JSONBody parses application/json request bodies of at most 1 MiB into the
// request context. Malformed JSON is rejected with 400. The raw body stays
// readable downstream. Bodies of other content types pass through untouched.
func JSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || !isJSON(r.Header.Get("Content-Type")) {
			next.ServeHTTP(w, r)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large (max 1MiB)")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(data))

		if len(bytes.TrimSpace(data)) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), jsonBodyContextKey{}, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
