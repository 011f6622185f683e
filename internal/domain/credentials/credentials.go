// Package credentials resolves the per-request Browserbase and model-provider
// secrets a stream is opened with.
package credentials

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Header names accepted for each credential field.
const (
	HeaderBrowserbaseAPIKey    = "x-browserbase-api-key"
	HeaderBrowserbaseProjectID = "x-browserbase-project-id"
	HeaderOpenAIAPIKey         = "x-openai-api-key"
)

// Query parameter names accepted for each credential field.
// Query parameters take precedence over headers.
const (
	ParamBrowserbaseAPIKey    = "browserbase_api_key"
	ParamBrowserbaseProjectID = "browserbase_project_id"
	ParamOpenAIAPIKey         = "openai_api_key"
)

// Credentials is the immutable triple of opaque secrets resolved from a single
// request. An empty field means the value was absent.
type Credentials struct {
	BrowserbaseAPIKey    string
	BrowserbaseProjectID string
	OpenAIAPIKey         string
}

// Extract resolves each field from the query parameters first, then the
// headers. Values are not validated.
func Extract(header http.Header, query url.Values) Credentials {
	return Credentials{
		BrowserbaseAPIKey:    resolve(header, query, HeaderBrowserbaseAPIKey, ParamBrowserbaseAPIKey),
		BrowserbaseProjectID: resolve(header, query, HeaderBrowserbaseProjectID, ParamBrowserbaseProjectID),
		OpenAIAPIKey:         resolve(header, query, HeaderOpenAIAPIKey, ParamOpenAIAPIKey),
	}
}

// FromRequest is Extract applied to r's headers and URL query.
func FromRequest(r *http.Request) Credentials {
	return Extract(r.Header, r.URL.Query())
}

func resolve(header http.Header, query url.Values, headerName, paramName string) string {
	if v := query.Get(paramName); v != "" {
		return v
	}
	return header.Get(headerName)
}

// Missing returns the query parameter names of the absent fields, in a fixed order.
func (c Credentials) Missing() []string {
	var missing []string
	if c.BrowserbaseAPIKey == "" {
		missing = append(missing, ParamBrowserbaseAPIKey)
	}
	if c.BrowserbaseProjectID == "" {
		missing = append(missing, ParamBrowserbaseProjectID)
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, ParamOpenAIAPIKey)
	}
	return missing
}

// Complete reports whether all three fields are present.
func (c Credentials) Complete() bool {
	return len(c.Missing()) == 0
}

// Fingerprint returns a stable, non-reversible key for the triple.
// It is safe to log and correlates sessions opened with the same secrets.
func (c Credentials) Fingerprint() string {
	d := xxhash.New()
	// Length prefixes keep ("ab","c") and ("a","bc") apart.
	for _, part := range []string{c.BrowserbaseAPIKey, c.BrowserbaseProjectID, c.OpenAIAPIKey} {
		_, _ = d.WriteString(strconv.Itoa(len(part)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(part)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// LogValue implements slog.LogValuer so secrets never reach log output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("fingerprint", c.Fingerprint()),
		slog.String("project_id", c.BrowserbaseProjectID),
		slog.Bool("complete", c.Complete()),
	)
}

// MissingMessage is the client-facing explanation returned when a stream is
// opened without the full set of credentials.
func MissingMessage() string {
	return "Missing required credentials. Provide them as headers (" +
		HeaderBrowserbaseAPIKey + ", " + HeaderBrowserbaseProjectID + ", " + HeaderOpenAIAPIKey +
		") or as query parameters (" +
		ParamBrowserbaseAPIKey + ", " + ParamBrowserbaseProjectID + ", " + ParamOpenAIAPIKey + ")"
}
