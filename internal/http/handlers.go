package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"faturas/internal/log"
	"faturas/internal/storage"
)

const (
	defaultLoadsLimit = 20
	maxLoadsLimit     = 200
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).String(),
	})
}

// handleReady reports whether templates are parsed and a dataset with
// records has been loaded. It never triggers a load itself.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, v any) {
		checks[name] = v
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	switch rep, loaded := s.store.Status(); {
	case !loaded:
		fail("dataset", "not_loaded")
	case !rep.OK():
		fail("dataset", map[string]any{"status": "empty", "error": rep.Error, "source": rep.Source})
	default:
		checks["dataset"] = map[string]any{
			"status":    "ok",
			"source":    rep.Source,
			"records":   rep.RowsKept,
			"loaded_at": rep.LoadedAt.Format(time.RFC3339),
		}
	}

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			fail("history", fmt.Sprintf("failed: %v", err))
		} else {
			checks["history"] = "ok"
		}
	} else {
		checks["history"] = "disabled"
	}

	checks["cache"] = map[string]any{
		"entries": s.views.Size(),
		"status":  "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	cacheStats := s.views.Stats()
	rep, _ := s.store.Status()

	w.WriteHeader(http.StatusOK)

	// Write metrics in Prometheus-like format
	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %g\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_client_errors_total", "Responses with a 4xx status", traceMetrics.ClientErrors)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	counter("views_rendered_total", "Templates rendered", s.metrics.renders.Load())
	counter("view_render_errors_total", "Template executions that failed", s.metrics.renderErrs.Load())
	counter("exports_total", "CSV exports served", s.metrics.exports.Load())
	counter("reloads_total", "Dataset reloads requested over HTTP", s.metrics.reloads.Load())
	counter("cache_hits_total", "Rendered view cache hits", int64(cacheStats.Hits))
	counter("cache_misses_total", "Rendered view cache misses", int64(cacheStats.Misses))
	counter("rate_limit_rejections_total", "Requests rejected by the reload rate limiter", limitMetrics.Rejected)

	gauge("cache_entries", "Current rendered view cache entries", float64(cacheStats.Size))
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", float64(limitMetrics.ClientCount))
	gauge("dataset_records", "Invoices in the cached dataset", float64(rep.RowsKept))
	gauge("dataset_rows_dropped", "Rows dropped by the last load", float64(rep.RowsDropped))
	gauge("dataset_files_read", "Files read by the last load", float64(rep.FilesRead))
	gauge("uptime_seconds", "Application uptime in seconds", float64(int64(time.Since(s.metrics.started).Seconds())))
}

// handleLoads lists recent load runs from the history database.
func (s *Server) handleLoads(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "load history is disabled"})
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultLoadsLimit, maxLoadsLimit)

	runs, err := s.history.RecentLoads(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list load runs", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list load runs"})
		return
	}
	exports, err := s.history.ExportCount(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to count exports", log.FieldError, err)
	}
	if runs == nil {
		runs = []storage.LoadRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loads":   runs,
		"exports": exports,
		"limit":   limit,
	})
}
