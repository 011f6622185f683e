package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/browserbase"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// ServerName is the implementation name advertised to MCP clients.
const ServerName = "sessiongate"

// Tool names exposed on every session.
const (
	ToolSessionCreate = "browserbase_session_create"
	ToolSessionClose  = "browserbase_session_close"
	ToolSessionDebug  = "browserbase_session_debug"
	ToolSessionLogs   = "browserbase_session_logs"
	ToolArtifactsList = "browserbase_artifacts_list"
)

// Artifact names written by the tools.
const (
	ArtifactSession = "session"
	ArtifactDebug   = "debug"
	ArtifactLogs    = "logs"
)

const artifactScheme = "artifact://"

var (
	errNoBrowser = errors.New("no browser session is open; call " + ToolSessionCreate + " first")
	errClosing   = errors.New("session is closing")
)

// BrowserPool hands out the remote browser owned by each session.
type BrowserPool interface {
	Acquire(ctx context.Context, sessionID string, creds credentials.Credentials) (*browserbase.BrowserSession, bool, error)
	Get(sessionID string) (*browserbase.BrowserSession, bool)
	Release(ctx context.Context, sessionID string, creds credentials.Credentials) error
}

// BrowserInspector reads diagnostics of a remote browser.
type BrowserInspector interface {
	DebugURLs(ctx context.Context, creds credentials.Credentials, id string) (*browserbase.DebugInfo, error)
	Logs(ctx context.Context, creds credentials.Credentials, id string) ([]browserbase.LogEntry, error)
}

// ToolServerFactory builds the MCP server that backs one session.
type ToolServerFactory struct {
	pool      BrowserPool
	inspector BrowserInspector
	artifacts outbound.ArtifactStore
	logger    *slog.Logger
	version   string
}

// NewToolServerFactory creates a factory. artifacts may be nil, in which
// case nothing is buffered and the artifact resource is not offered.
func NewToolServerFactory(pool BrowserPool, inspector BrowserInspector, artifacts outbound.ArtifactStore, logger *slog.Logger, version string) *ToolServerFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolServerFactory{
		pool:      pool,
		inspector: inspector,
		artifacts: artifacts,
		logger:    logger,
		version:   version,
	}
}

// New returns a server whose tools act with sess's credentials and buffer
// artifacts under sess's id.
func (f *ToolServerFactory) New(sess *session.Session) *mcp.Server {
	t := &sessionTools{
		factory: f,
		sess:    sess,
		id:      sess.ID,
		creds:   sess.Credentials,
		logger:  f.logger.With("session_id", sess.ID),
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: f.version},
		&mcp.ServerOptions{Logger: t.logger},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSessionCreate,
		Description: "Create a remote browser for this session, or return the one already open.",
	}, t.create)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSessionClose,
		Description: "Release the remote browser of this session.",
	}, t.close)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSessionDebug,
		Description: "Return the live debugger URLs of the remote browser.",
	}, t.debug)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSessionLogs,
		Description: "Fetch the remote browser logs and buffer them as the logs artifact.",
	}, t.logs)

	if f.artifacts != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolArtifactsList,
			Description: "List the artifacts buffered for this session.",
		}, t.listArtifacts)
		server.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        "artifact",
			Description: "An artifact buffered for this session.",
			URITemplate: artifactScheme + "{name}",
			MIMEType:    "application/json",
		}, t.readArtifact)
	}

	return server
}

// sessionTools binds tool handlers to one session.
type sessionTools struct {
	factory *ToolServerFactory
	sess    *session.Session
	id      string
	creds   credentials.Credentials
	logger  *slog.Logger
}

type noInput struct{}

// LogsInput are the arguments of the logs tool.
type LogsInput struct {
	Tail int `json:"tail,omitempty" jsonschema:"return only the last N entries inline; all entries are still buffered"`
}

type createOutput struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
	Status     string `json:"status"`
	Reused     bool   `json:"reused"`
}

func (t *sessionTools) create(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	if !t.sess.Routable() {
		return nil, nil, errClosing
	}
	bs, created, err := t.factory.pool.Acquire(ctx, t.id, t.creds)
	if err != nil {
		return nil, nil, err
	}
	if !t.sess.Routable() {
		// Teardown began while the browser was starting and may have missed it.
		if err := t.factory.pool.Release(context.WithoutCancel(ctx), t.id, t.creds); err != nil {
			t.logger.Warn("late browser release failed", "browser_session_id", bs.ID, "error", err)
		}
		return nil, nil, errClosing
	}
	out := createOutput{ID: bs.ID, ConnectURL: bs.ConnectURL, Status: bs.Status, Reused: !created}
	t.store(ctx, ArtifactSession, out)
	return jsonResult(out)
}

func (t *sessionTools) close(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	bs, ok := t.factory.pool.Get(t.id)
	if !ok {
		return textResult("no browser session to close"), nil, nil
	}
	if err := t.factory.pool.Release(ctx, t.id, t.creds); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("browser session %s released", bs.ID)), nil, nil
}

func (t *sessionTools) debug(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	bs, ok := t.factory.pool.Get(t.id)
	if !ok {
		return nil, nil, errNoBrowser
	}
	info, err := t.factory.inspector.DebugURLs(ctx, t.creds, bs.ID)
	if err != nil {
		return nil, nil, err
	}
	t.store(ctx, ArtifactDebug, info)
	return jsonResult(info)
}

func (t *sessionTools) logs(ctx context.Context, _ *mcp.CallToolRequest, in LogsInput) (*mcp.CallToolResult, any, error) {
	bs, ok := t.factory.pool.Get(t.id)
	if !ok {
		return nil, nil, errNoBrowser
	}
	entries, err := t.factory.inspector.Logs(ctx, t.creds, bs.ID)
	if err != nil {
		return nil, nil, err
	}
	t.store(ctx, ArtifactLogs, entries)

	tail := entries
	if in.Tail > 0 && in.Tail < len(entries) {
		tail = entries[len(entries)-in.Tail:]
	}
	return jsonResult(map[string]any{
		"count":    len(entries),
		"artifact": artifactScheme + ArtifactLogs,
		"entries":  tail,
	})
}

func (t *sessionTools) listArtifacts(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	names, err := t.factory.artifacts.List(ctx, t.id)
	if err != nil {
		return nil, nil, err
	}
	uris := make([]string, 0, len(names))
	for _, n := range names {
		uris = append(uris, artifactScheme+n)
	}
	return jsonResult(uris)
}

func (t *sessionTools) readArtifact(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	name := strings.TrimPrefix(uri, artifactScheme)
	if name == "" || name == uri {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	data, err := t.factory.artifacts.Get(ctx, t.id, name)
	if errors.Is(err, outbound.ErrArtifactNotFound) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}

// store buffers v as a session artifact. Failures only cost the artifact.
func (t *sessionTools) store(ctx context.Context, name string, v any) {
	if t.factory.artifacts == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.logger.Warn("artifact encode failed", "artifact", name, "error", err)
		return
	}
	if err := t.factory.artifacts.Put(ctx, t.id, name, data); err != nil {
		t.logger.Warn("artifact store failed", "artifact", name, "error", err)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(data)), nil, nil
}
