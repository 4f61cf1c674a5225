package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jpalmerr/statusfeed/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "StatusFeed"

	// DefaultIdentityHeader carries the caller identity on mutating requests.
	DefaultIdentityHeader = "X-Identity"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	// identityHeaderPlaceholder is replaced with the configured identity header
	// name so the page can send it.
	identityHeaderPlaceholder = "{{.IdentityHeader}}"
)

// Config holds the settings for a [Server].
type Config struct {
	// Port is the TCP port to listen on. Zero lets the OS choose.
	Port int

	// Title is the dashboard title. Defaults to "StatusFeed".
	Title string

	// IdentityHeader names the request header holding the caller identity.
	// Defaults to [DefaultIdentityHeader].
	IdentityHeader string

	// Clock supplies the logical timestamp for new statuses.
	// Defaults to wall-clock Unix nanoseconds.
	Clock func() uint64

	// Assets contains the dashboard page at "assets/index.html" (may be nil).
	Assets fs.FS
}

// Server handles HTTP requests for the status API and dashboard.
//
// Routes:
//   - POST /api/status, DELETE /api/status: mutate the caller's status
//   - GET /api/status/:id, /api/history/:id, /api/feed, /api/search, /api/stats: queries
//   - GET /api/sse: Server-Sent Events stream of mutations
//   - GET /: the embedded dashboard
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store          store.Store
	port           int
	httpServer     *http.Server
	assets         fs.FS
	title          string
	identityHeader string
	clock          func() uint64
	logger         *slog.Logger
}

// NewServer creates a new HTTP [Server] over st.
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, cfg Config, logger *slog.Logger) *Server {
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = DefaultIdentityHeader
	}
	if cfg.Clock == nil {
		cfg.Clock = WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:          st,
		port:           cfg.Port,
		assets:         cfg.Assets,
		title:          cfg.Title,
		identityHeader: cfg.IdentityHeader,
		clock:          cfg.Clock,
		logger:         logger,
	}
}

// WallClock returns the current time as Unix nanoseconds.
func WallClock() uint64 {
	return uint64(time.Now().UnixNano())
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine()
}

// engine builds the gin router.
//
// Identities may contain '/', so routing matches on the escaped path and
// :id is unescaped afterwards.
func (s *Server) engine() *gin.Engine {
	quietGin()
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(s.recovery())

	api := r.Group("/api")
	api.POST("/status", s.handleSetStatus)
	api.DELETE("/status", s.handleDeleteStatus)
	api.GET("/status/:id", s.handleGetStatus)
	api.GET("/history/:id", s.handleGetHistory)
	api.GET("/feed", s.handleGetFeed)
	api.GET("/search", s.handleSearch)
	api.GET("/stats", s.handleStats)
	api.GET("/sse", gin.WrapF(s.handleSSE))

	if s.assets != nil {
		r.GET("/", gin.WrapF(s.handleDashboard))
	}

	return r
}

// quietGin switches gin out of its default debug mode, which prints route
// dumps to stdout. GIN_MODE or an earlier non-debug gin.SetMode wins.
func quietGin() {
	if os.Getenv(gin.EnvGinMode) == "" && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.NewReplacer(
		titlePlaceholder, html.EscapeString(title),
		identityHeaderPlaceholder, html.EscapeString(s.identityHeader),
	).Replace(string(content))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSSE streams store mutations via Server-Sent Events.
//
// The stream opens with a "feed" event carrying the whole feed, followed by
// one "set" or "delete" event per mutation. Write deadlines keep a slow or
// vanished client from pinning the handler goroutine.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(event string, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}

		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the feed so no mutation falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	data, err := json.Marshal(s.store.GetFeed())
	if err != nil {
		s.logger.Error("failed to encode feed", "error", err)
		return
	}
	if err := writeAndFlush("feed", data); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeAndFlush(string(ev.Kind), data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
