package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// whoamiFactory serves a single tool that reports the session id.
type whoamiFactory struct{}

type whoamiInput struct{}

func (whoamiFactory) New(sess *session.Session) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "whoami", Version: "v0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "whoami", Description: "Report the session id"},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ whoamiInput) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: sess.ID}}}, nil, nil
		})
	return server
}

const credentialQuery = "?browserbase_api_key=bb-key&browserbase_project_id=proj-1&openai_api_key=sk-test"

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func connectClient(t *testing.T, ctx context.Context, endpoint string, httpClient *http.Client) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: httpClient}, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return cs
}

func whoami(t *testing.T, ctx context.Context, cs *mcp.ClientSession) string {
	t.Helper()
	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "whoami", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("CallTool() content = %d items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func TestTransport_SessionsEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tr := newTestTransport(t, whoamiFactory{})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := connectClient(t, ctx, srv.URL+StreamPath+credentialQuery, srv.Client())
	second := connectClient(t, ctx, srv.URL+StreamPath+credentialQuery, srv.Client())

	if n := tr.lifecycle.Registry().Count(); n != 2 {
		t.Fatalf("registry count = %d, want 2", n)
	}

	firstID := whoami(t, ctx, first)
	secondID := whoami(t, ctx, second)
	if firstID == secondID {
		t.Fatal("two streams share a session id")
	}
	if len(firstID) != 64 {
		t.Errorf("session id length = %d, want 64", len(firstID))
	}
	for _, id := range []string{firstID, secondID} {
		if _, ok := tr.lifecycle.Registry().Lookup(id); !ok {
			t.Errorf("session %s not registered", id)
		}
	}

	// Closing one stream leaves the other routable.
	if err := first.Close(); err != nil {
		t.Errorf("first.Close() error = %v", err)
	}
	waitFor(t, "first session removal", func() bool {
		_, ok := tr.lifecycle.Registry().Lookup(firstID)
		return !ok
	})

	if got := whoami(t, ctx, second); got != secondID {
		t.Errorf("second session answered as %q, want %q", got, secondID)
	}

	// Posting to the closed session is answered with 503.
	resp, err := srv.Client().Post(srv.URL+MessagesPath+"?sessionId="+firstID, "application/json",
		strings.NewReader(pingMessage))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("post to closed session status = %d, want 503", resp.StatusCode)
	}

	if err := second.Close(); err != nil {
		t.Errorf("second.Close() error = %v", err)
	}
	waitFor(t, "empty registry", func() bool { return tr.lifecycle.Registry().Count() == 0 })
}

func TestTransport_StreamHeaders(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tr := newTestTransport(t, whoamiFactory{})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+StreamPath+credentialQuery, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", StreamPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, h := range []struct{ key, want string }{
		{"Content-Type", "text/event-stream"},
		{"Cache-Control", "no-cache"},
		{"Connection", "keep-alive"},
		{"X-Accel-Buffering", "no"},
	} {
		if got := resp.Header.Get(h.key); got != h.want {
			t.Errorf("%s = %q, want %q", h.key, got, h.want)
		}
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil || line != "event: endpoint\n" {
		t.Errorf("first line = %q, %v; want the endpoint event", line, err)
	}

	cancel()
	waitFor(t, "session teardown", func() bool { return tr.lifecycle.Registry().Count() == 0 })
}

func TestTransport_RejectsStreamWithoutCredentials(t *testing.T) {
	tr := newTestTransport(t, whoamiFactory{})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	_, err := client.Connect(context.Background(), &mcp.SSEClientTransport{
		Endpoint:   srv.URL + StreamPath,
		HTTPClient: srv.Client(),
	}, nil)
	if err == nil {
		t.Fatal("Connect() without credentials should fail")
	}
	if n := tr.lifecycle.Registry().Count(); n != 0 {
		t.Errorf("registry count = %d, want 0", n)
	}
}

func TestTransport_ShutdownTearsDownSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	tr := NewHTTPTransport(service.NewSessionLifecycle(session.NewRegistry(), discardLogger()), whoamiFactory{},
		WithListener(ln),
		WithLogger(discardLogger()),
		WithShutdownTimeout(5*time.Second),
	)

	serveCtx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Start(serveCtx) }()

	httpClient := &http.Client{}
	defer httpClient.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cs := connectClient(t, ctx, "http://"+ln.Addr().String()+StreamPath+credentialQuery, httpClient)
	if n := tr.lifecycle.Registry().Count(); n != 1 {
		t.Fatalf("registry count = %d, want 1", n)
	}

	stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	if n := tr.lifecycle.Registry().Count(); n != 0 {
		t.Errorf("registry count after shutdown = %d, want 0", n)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cs.Wait() }()
	select {
	case <-waitErr:
	case <-time.After(5 * time.Second):
		t.Error("client session still open after shutdown")
	}
}

func TestTransport_StartFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	tr := NewHTTPTransport(newTestTransport(t, nil).lifecycle, nil,
		WithAddr(ln.Addr().String()),
		WithLogger(discardLogger()),
	)
	if err := tr.Start(context.Background()); err == nil {
		t.Error("Start() on a busy address should fail")
	} else {
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			t.Errorf("Start() error = %T, want *net.OpError", err)
		}
	}
}

func TestTransport_Routes(t *testing.T) {
	tr := newTestTransport(t, nil)
	handler := tr.Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "detailed health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "messages wrong method", method: http.MethodGet, path: MessagesPath, wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestTransport_CORSPreflight(t *testing.T) {
	tr := NewHTTPTransport(newTestTransport(t, nil).lifecycle, nil,
		WithLogger(discardLogger()),
		WithAllowedOrigins([]string{"https://app.example.com"}),
	)

	req := httptest.NewRequest(http.MethodOptions, StreamPath, nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "x-browserbase-api-key")
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")); !strings.Contains(got, "x-browserbase-api-key") {
		t.Errorf("Allow-Headers = %q, want the credential header", got)
	}
}
