package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jpalmerr/statusfeed/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() *store.MemoryStore {
	return store.NewMemoryStore(store.DefaultHistoryCap, store.DefaultFeedCap, store.DefaultSearchCacheSize)
}

func newTestServer(st store.Store, cfg Config) *Server {
	return NewServer(st, cfg, testLogger())
}

// sseFrame is one parsed "event:/data:" block.
type sseFrame struct {
	Event string
	Data  string
}

func parseSSEFrames(body string) []sseFrame {
	var frames []sseFrame
	for _, block := range strings.Split(body, "\n\n") {
		var f sseFrame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		if f.Event != "" {
			frames = append(frames, f)
		}
	}
	return frames
}

// --- SSE ---

func TestHandleSSE_InitialFeed(t *testing.T) {
	st := newTestStore()
	_, _ = st.SetStatus("alice", "API-1 up", 1)
	_, _ = st.SetStatus("bob", "API-2 down", 2)

	srv := newTestServer(st, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	frames := parseSSEFrames(rec.Body.String())
	if len(frames) == 0 || frames[0].Event != "feed" {
		t.Fatalf("first frame = %+v, want feed event", frames)
	}

	var feed []store.FeedEntry
	if err := json.Unmarshal([]byte(frames[0].Data), &feed); err != nil {
		t.Fatalf("failed to parse feed: %v, data: %s", err, frames[0].Data)
	}
	if len(feed) != 2 || feed[0].Identity != "alice" || feed[1].Record.Message != "API-2 down" {
		t.Errorf("feed = %+v, want alice then bob", feed)
	}
}

func TestHandleSSE_StreamsEvents(t *testing.T) {
	st := newTestStore()
	srv := newTestServer(st, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	_, _ = st.SetStatus("carol", "streamed", 5)
	st.DeleteStatus("carol")

	// give time for events to be written
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	frames := parseSSEFrames(rec.Body.String())
	var kinds []string
	for _, f := range frames {
		kinds = append(kinds, f.Event)
	}
	if strings.Join(kinds, ",") != "feed,set,delete" {
		t.Fatalf("event sequence = %v, want [feed set delete]", kinds)
	}

	var ev store.Event
	if err := json.Unmarshal([]byte(frames[1].Data), &ev); err != nil {
		t.Fatalf("failed to parse event: %v", err)
	}
	if ev.Identity != "carol" || ev.Record.Message != "streamed" || ev.Record.Timestamp != 5 {
		t.Errorf("set event = %+v", ev)
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// simulate client disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_UnsubscribesOnExit(t *testing.T) {
	st := newTestStore()
	srv := newTestServer(st, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	srv.handleSSE(httptest.NewRecorder(), req)

	// a leftover subscriber would still be registered; fill its buffer and
	// make sure writes keep flowing
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			_, _ = st.SetStatus("x", "y", uint64(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetStatus blocked after SSE handler exit")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	// allow existing goroutines to settle
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv := newTestServer(newTestStore(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			srv.handleSSE(rec, req)
		}()
	}

	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	st := newTestStore()
	_, _ = st.SetStatus("a", "up", 1)
	srv := newTestServer(st, Config{})

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)
			rec := httptest.NewRecorder()

			// use Add's return value to ensure only one goroutine closes the channel
			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(rec, req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)

	// use a writer that doesn't support flushing
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}

	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

// --- Integration tests with real connections ---

// TestHandleSSE_ServerShutdownIntegration checks that SSE handlers exit
// cleanly when the server is shut down, using a real HTTP connection.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	st := newTestStore()
	_, _ = st.SetStatus("a", "integration", 1)
	srv := newTestServer(st, Config{})

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// derive request context from server context (simulates BaseContext)
		r = r.WithContext(serverCtx)
		srv.handleSSE(w, r)
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Get(ts.URL)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		buf := make([]byte, 1024)
		for {
			if _, err := resp.Body.Read(buf); err != nil {
				connDone <- nil // expected - connection closed
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

func TestServer_SSEThroughRouter(t *testing.T) {
	st := newTestStore()
	_, _ = st.SetStatus("router", "via gin", 1)
	srv := newTestServer(st, Config{})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sse", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// the initial feed frame is flushed immediately
	buf := make([]byte, 4096)
	var got strings.Builder
	for !strings.Contains(got.String(), "\n\n") {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if !strings.Contains(got.String(), "event: feed") || !strings.Contains(got.String(), "via gin") {
		t.Errorf("initial frame = %q, want feed containing 'via gin'", got.String())
	}
}

// --- Server Start ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	// port 0 = OS assigns available port
	srv := newTestServer(newTestStore(), Config{Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := newTestServer(newTestStore(), Config{Port: port})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{Port: -1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Dashboard ---

// mockFS implements fs.ReadFileFS for testing dashboard rendering.
type mockFS struct {
	content string
}

func (m *mockFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func TestHandleDashboard_CustomTitle(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title><h1>{{.Title}}</h1>"}
	srv := newTestServer(newTestStore(), Config{Assets: mockAssets, Title: "Team Status"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.handleDashboard(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Team Status</title>") {
		t.Errorf("expected title tag with custom title, got: %s", body)
	}
	if !strings.Contains(body, "<h1>Team Status</h1>") {
		t.Errorf("expected h1 with custom title, got: %s", body)
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	mockAssets := &mockFS{content: "<title>{{.Title}}</title>"}
	srv := newTestServer(newTestStore(), Config{Assets: mockAssets})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.handleDashboard(rec, req)

	if body := rec.Body.String(); !strings.Contains(body, "<title>StatusFeed</title>") {
		t.Errorf("expected default title StatusFeed, got: %s", body)
	}
}

func TestHandleDashboard_IdentityHeader(t *testing.T) {
	mockAssets := &mockFS{content: `<body data-identity-header="{{.IdentityHeader}}">`}
	srv := newTestServer(newTestStore(), Config{Assets: mockAssets, IdentityHeader: "X-Forwarded-User"})

	rec := httptest.NewRecorder()
	srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if body := rec.Body.String(); !strings.Contains(body, `data-identity-header="X-Forwarded-User"`) {
		t.Errorf("expected configured identity header in page, got: %s", body)
	}
}

func TestHandleDashboard_AssetsMissing(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{Title: "Custom Title"}) // nil assets

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{Assets: &mockFS{content: "x"}})

	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	rec := httptest.NewRecorder()

	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandleDashboard_TitleIsEscaped(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"<script>alert('xss')</script>", "&lt;script&gt;"},
		{"Health & Status", "Health &amp; Status"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			srv := newTestServer(newTestStore(), Config{
				Assets: &mockFS{content: "<title>{{.Title}}</title>"},
				Title:  tt.title,
			})

			rec := httptest.NewRecorder()
			srv.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			body := rec.Body.String()
			if strings.Contains(body, "<script>") {
				t.Error("title should be HTML-escaped to prevent XSS")
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("expected %q in body, got: %s", tt.want, body)
			}
		})
	}
}

func TestRouter_ServesDashboardAtRoot(t *testing.T) {
	srv := newTestServer(newTestStore(), Config{Assets: &mockFS{content: "<h1>{{.Title}}</h1>"}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>StatusFeed</h1>") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandler_LeavesGinDebugMode(t *testing.T) {
	t.Setenv(gin.EnvGinMode, "")
	gin.SetMode(gin.DebugMode)
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	_ = newTestServer(newTestStore(), Config{}).Handler()

	if got := gin.Mode(); got != gin.ReleaseMode {
		t.Errorf("gin.Mode() = %q, want %q", got, gin.ReleaseMode)
	}
}

func TestHandler_KeepsExplicitGinMode(t *testing.T) {
	_ = newTestServer(newTestStore(), Config{}).Handler()

	if got := gin.Mode(); got != gin.TestMode {
		t.Errorf("gin.Mode() = %q, want %q", got, gin.TestMode)
	}
}
