// Package http serves the invoice dashboard, its HTMX partials and the
// JSON, CSV and operational endpoints.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"faturas/internal/cache"
	"faturas/internal/dataset"
	"faturas/internal/log"
	"faturas/internal/middleware/ratelimit"
	"faturas/internal/middleware/security"
	"faturas/internal/middleware/trace"
	"faturas/internal/storage"
	appweb "faturas/web"
)

// History is the optional audit store behind /api/loads and export records.
type History interface {
	RecentLoads(ctx context.Context, limit int) ([]storage.LoadRun, error)
	RecordExport(ctx context.Context, e storage.Export) error
	ExportCount(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Deps wires the server to the rest of the application. Store is required;
// nil History disables load history and export audit. Views caches rendered
// dashboard partials and should be purged by a dataset load listener.
type Deps struct {
	Store   *dataset.Store
	History History
	Views   *cache.LRUCache[[]byte]
	Limiter *ratelimit.Limiter
	IPs     *security.IPExtractor
	Logger  *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	store     *dataset.Store
	history   History
	views     *cache.LRUCache[[]byte]
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	ips       *security.IPExtractor
	logger    *log.Logger

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	started    time.Time
	renders    atomic.Int64
	exports    atomic.Int64
	reloads    atomic.Int64
	renderErrs atomic.Int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentHTTP)
	}
	if deps.Views == nil {
		deps.Views = cache.NewLRUCache[[]byte](100, 5*time.Minute)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if deps.IPs == nil {
		deps.IPs = security.NewIPExtractor()
	}

	mux := http.NewServeMux()
	s := &Server{
		templates: parseTemplates(deps.Logger),
		store:     deps.Store,
		history:   deps.History,
		views:     deps.Views,
		limiter:   deps.Limiter,
		ips:       deps.IPs,
		logger:    deps.Logger,
	}
	s.metrics.started = time.Now()
	s.tracer = trace.NewMiddleware(deps.Logger.WithComponent(log.ComponentTrace), s.ips.ExtractClientIP)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	reloadLimit := s.limiter.Middleware(s.ips.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/charts", s.handleCharts)
	mux.HandleFunc("GET /api/loads", s.handleLoads)
	mux.HandleFunc("GET /export.csv", s.handleExport)
	mux.Handle("POST /reload", reloadLimit(http.HandlerFunc(s.handleReload)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(security.Headers(security.DefaultHeadersConfig())(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func parseTemplates(logger *log.Logger) *template.Template {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		// /readyz reports the server as not ready.
		logger.Error("Failed parsing templates", log.FieldError, err)
		return nil
	}
	return t
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
