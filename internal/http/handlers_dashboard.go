package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"faturas/internal/dataset"
	"faturas/internal/filter"
	"faturas/internal/log"
	"faturas/internal/report"
	"faturas/internal/storage"
)

const (
	// TriggerDatasetReloaded is sent in HX-Trigger after POST /reload.
	TriggerDatasetReloaded = "dataset:reloaded"

	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
)

// currentDataset returns the cached dataset, or writes the unavailable page
// and returns false when there is nothing to show.
func (s *Server) currentDataset(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	ds, err := s.store.Dataset(r.Context())
	if err == nil && !ds.Empty() {
		return ds, true
	}
	logger := log.FromContext(r.Context())
	if errors.Is(err, dataset.ErrEmptyDataset) || ds.Empty() {
		logger.WarnContext(r.Context(), "Dataset unavailable", log.FieldError, err)
	} else {
		logger.ErrorContext(r.Context(), "Dataset load failed", log.FieldError, err)
	}
	s.renderUnavailable(w, r, report.Build(ds, filter.Criteria{}))
	return nil, false
}

func (s *Server) renderUnavailable(w http.ResponseWriter, r *http.Request, view report.View) {
	name := "error.html"
	if isHTMX(r) {
		name = "unavailable"
	}
	body, err := s.render(name, view)
	if err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusServiceUnavailable).
		Header("Content-Type", contentTypeHTML).
		Body(body).
		Write(w)
}

func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	s.metrics.renders.Add(1)
	return buf.Bytes(), nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	s.metrics.renderErrs.Add(1)
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		log.FieldOperation, log.OpRender,
		"template", name,
		log.FieldError, err)
	InternalServerError("Erro ao renderizar a página").Write(w)
}

// handleIndex renders the full dashboard page for the filters in the query.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.currentDataset(w, r)
	if !ok {
		return
	}
	view := report.Build(ds, parseCriteria(r))
	body, err := s.render("index.html", view)
	if err != nil {
		s.renderFailed(w, r, "index.html", err)
		return
	}
	NewHTMXResponse().Header("Content-Type", contentTypeHTML).Body(body).Write(w)
}

// handleDashboard returns the cards, charts and table partial. Rendered
// partials are cached per dataset load and criteria.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.currentDataset(w, r)
	if !ok {
		return
	}
	c := parseCriteria(r)
	key := viewKey(ds, c)

	body, hit := s.views.Get(key)
	if !hit {
		var err error
		body, err = s.render("dashboard", report.Build(ds, c))
		if err != nil {
			s.renderFailed(w, r, "dashboard", err)
			return
		}
		s.views.Set(key, body)
	}

	resp := NewHTMXResponse().Header("Content-Type", contentTypeHTML).Body(body)
	if isHTMX(r) {
		resp.Header("HX-Push-Url", "/?"+c.Values().Encode())
	}
	resp.Write(w)
}

func viewKey(ds *dataset.Dataset, c filter.Criteria) string {
	return strconv.FormatInt(ds.Report.LoadedAt.UnixNano(), 36) + "|" + c.Key()
}

type chartsResponse struct {
	Period      string `json:"period"`
	Granularity string `json:"granularity"`
	report.Charts
}

// handleCharts serves bar and donut data for the current filters.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset(r.Context())
	if err != nil || ds.Empty() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": unavailableMessage(ds, err)})
		return
	}
	view := report.Build(ds, parseCriteria(r))
	writeJSON(w, http.StatusOK, chartsResponse{
		Period:      view.Period,
		Granularity: view.Granularity.String(),
		Charts:      view.Charts,
	})
}

// handleExport downloads the filtered records as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset(r.Context())
	if err != nil || ds.Empty() {
		http.Error(w, unavailableMessage(ds, err), http.StatusServiceUnavailable)
		return
	}
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentExport)

	records, c := report.Select(ds, parseCriteria(r))
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, records); err != nil {
		logger.ErrorContext(r.Context(), "CSV export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.metrics.exports.Add(1)

	if s.history != nil {
		e := storage.Export{Query: c.Values().Encode(), Rows: len(records), Destination: "http", CreatedAt: time.Now()}
		if err := s.history.RecordExport(r.Context(), e); err != nil {
			logger.WarnContext(r.Context(), "Failed to record export", log.FieldOperation, log.OpRecord, log.FieldError, err)
		}
	}
	logger.InfoContext(r.Context(), "Invoices exported", log.FieldOperation, log.OpExport, log.FieldRecords, len(records))

	NewHTMXResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFileName)).
		Body(buf.Bytes()).
		Write(w)
}

// handleReload drops the cached dataset and loads it again.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	ds, err := s.store.Reload(r.Context())
	s.views.Purge()
	s.metrics.reloads.Add(1)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var records int
	var loadedAt time.Time
	if ds != nil {
		records, loadedAt = len(ds.Records), ds.Report.LoadedAt
	}
	resp := NewHTMXResponse().TriggerDatasetReload(records, loadedAt)
	if err != nil {
		logger.WarnContext(r.Context(), "Reload produced no data", log.FieldOperation, log.OpReload, log.FieldError, err)
		resp.TriggerNotification(NotificationWarning, "Nenhuma fatura disponível após recarregar", 5000).
			BodyHTML(fmt.Sprintf(`<span class="reload-status warning">%s</span>`, template.HTMLEscapeString(unavailableMessage(ds, err)))).
			Write(w)
		return
	}
	logger.InfoContext(r.Context(), "Dataset reloaded on request", log.FieldOperation, log.OpReload, log.FieldRecords, records)
	resp.TriggerSuccessNotification(fmt.Sprintf("%d faturas carregadas", records)).
		BodyHTML(fmt.Sprintf(`<span class="reload-status">%d faturas carregadas</span>`, records)).
		Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Reload rate limit exceeded",
		log.FieldClientIP, s.ips.ExtractClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, "Muitas solicitações. Tente novamente em instantes.").
		TriggerErrorNotification("Muitas solicitações. Tente novamente em instantes.").
		Write(w)
}

func unavailableMessage(ds *dataset.Dataset, err error) string {
	if ds != nil && ds.Report.Error != "" {
		return ds.Report.Error
	}
	if err != nil {
		return err.Error()
	}
	return dataset.ErrEmptyDataset.Error()
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
