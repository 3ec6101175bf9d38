package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/monitoring"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/session"
	"github.com/NERVsystems/osmsurvey/pkg/survey"
	"github.com/NERVsystems/osmsurvey/pkg/version"
)

// csvRollupFilename is the attachment name of the /csv-rollup response.
const csvRollupFilename = "osm_feature_rollup.csv"

// RouteLimits are per-IP requests per minute for each route class.
type RouteLimits struct {
	Query    int
	Generate int
	CSV      int
	Download int
	Info     int
}

// DefaultRouteLimits returns the stock per-minute limits.
func DefaultRouteLimits() RouteLimits {
	return RouteLimits{Query: 20, Generate: 10, CSV: 10, Download: 30, Info: 60}
}

// APIOptions configures the REST API.
type APIOptions struct {
	Limits RouteLimits
	Health *monitoring.HealthChecker
	Logger *slog.Logger
	Now    func() time.Time
}

// API serves the survey operations over HTTP.
type API struct {
	service *survey.Service
	health  *monitoring.HealthChecker
	logger  *slog.Logger
	now     func() time.Time

	query    *RateLimiter
	generate *RateLimiter
	csv      *RateLimiter
	download *RateLimiter
	info     *RateLimiter
}

// NewAPI creates the REST API over svc. Call Stop to release the rate
// limiter goroutines.
func NewAPI(svc *survey.Service, opts APIOptions) *API {
	if opts.Limits == (RouteLimits{}) {
		opts.Limits = DefaultRouteLimits()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{
		service:  svc,
		health:   opts.Health,
		logger:   opts.Logger.With("component", "api"),
		now:      opts.Now,
		query:    NewRateLimiter("query", opts.Limits.Query),
		generate: NewRateLimiter("generate", opts.Limits.Generate),
		csv:      NewRateLimiter("csv", opts.Limits.CSV),
		download: NewRateLimiter("download", opts.Limits.Download),
		info:     NewRateLimiter("info", opts.Limits.Info),
	}
}

// Stop stops every rate limiter.
func (a *API) Stop() {
	for _, rl := range []*RateLimiter{a.query, a.generate, a.csv, a.download, a.info} {
		rl.Stop()
	}
}

// Mount registers the API routes on r.
func (a *API) Mount(r chi.Router) {
	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	if a.health != nil {
		r.Get("/ready", a.health.ReadinessHandler())
		r.Get("/live", a.health.LivenessHandler())
	}

	r.With(a.query.Middleware).Post("/query", a.handleQuery)
	r.With(a.generate.Middleware).Post("/generate", a.handleGenerate)
	r.With(a.csv.Middleware).Post("/csv-rollup", a.handleCSVRollup)

	r.Group(func(r chi.Router) {
		r.Use(a.download.Middleware)
		r.Get("/download/{session_id}/{filename}", a.handleDownload)
		r.Get("/files/{session_id}/{filename}", a.handleFile)
		r.Get("/session/{session_id}/files", a.handleSessionFiles)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.info.Middleware)
		r.Get("/feature-types", a.handleFeatureTypes)
		r.Get("/mach9-feature-types", a.handleSurveyFeatureTypes)
		r.Get("/examples", a.handleExamples)
	})
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	limits := a.service.Limits()
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "OSM Survey API",
		"version":     version.BuildVersion,
		"description": "Engineering and survey reports from OpenStreetMap data within a bounding box",
		"endpoints": map[string]string{
			"health":              "GET /health",
			"query":               "POST /query",
			"generate":            "POST /generate",
			"csv_rollup":          "POST /csv-rollup",
			"download":            "GET /download/{session_id}/{filename}",
			"files":               "GET /files/{session_id}/{filename}",
			"session_files":       "GET /session/{session_id}/files",
			"feature_types":       "GET /feature-types",
			"mach9_feature_types": "GET /mach9-feature-types",
			"examples":            "GET /examples",
			"mcp_sse":             "GET /mcp/sse",
			"mcp_message":         "POST /mcp/message",
		},
		"limits": map[string]any{
			"max_bbox_span":     limits.MaxBBoxSpan,
			"max_feature_types": limits.MaxFeatureTypes,
			"max_elements":      limits.MaxElements,
		},
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": a.now().Format(time.RFC3339),
		"version":   version.BuildVersion,
	})
}

// queryResponse is the /query body.
type queryResponse struct {
	TotalElements int             `json:"total_elements"`
	Nodes         []osm.Element   `json:"nodes"`
	Ways          []osm.Element   `json:"ways"`
	Relations     []osm.Element   `json:"relations"`
	BBox          geo.BoundingBox `json:"bbox"`
	FeatureTypes  []string        `json:"feature_types"`
	QueryTime     string          `json:"query_time"`
	Warnings      []string        `json:"warnings,omitempty"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req survey.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	// outputs are accepted on /query and only validated.
	if len(req.Outputs) > 0 {
		if _, err := survey.ExpandOutputs(req.Outputs); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	res, err := a.service.Query(r.Context(), req.QueryRequest)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c := res.Collection
	writeJSON(w, http.StatusOK, queryResponse{
		TotalElements: c.Total(),
		Nodes:         c.Nodes,
		Ways:          c.Ways,
		Relations:     c.Relations,
		BBox:          res.BBox,
		FeatureTypes:  res.FeatureTypes,
		QueryTime:     res.QueryTime.Format(time.RFC3339),
		Warnings:      res.Warnings,
	})
}

// generateResponse is the /generate body.
type generateResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Data     generateData           `json:"data"`
	Files    []string               `json:"files"`
	Details  []survey.GeneratedFile `json:"file_details"`
	Warnings []string               `json:"warnings,omitempty"`
}

type generateData struct {
	SessionID     string          `json:"session_id"`
	TotalElements int             `json:"total_elements"`
	BBox          geo.BoundingBox `json:"bbox"`
	FeatureTypes  []string        `json:"feature_types"`
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req survey.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.service.Generate(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("generated outputs",
		"request_id", RequestID(r.Context()),
		"session_id", res.SessionID,
		"file_count", len(res.Files))

	writeJSON(w, http.StatusOK, generateResponse{
		Success: true,
		Message: res.Message(),
		Data: generateData{
			SessionID:     res.SessionID,
			TotalElements: res.TotalElements,
			BBox:          res.BBox,
			FeatureTypes:  res.FeatureTypes,
		},
		Files:    res.URLs(),
		Details:  res.Files,
		Warnings: res.Warnings,
	})
}

func (a *API) handleCSVRollup(w http.ResponseWriter, r *http.Request) {
	var req survey.QueryRequest
	if !a.decode(w, r, &req) {
		return
	}

	data, err := a.service.CSVRollup(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+csvRollupFilename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		a.logger.Error("failed to write csv rollup", "error", err)
	}
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, name, ok := a.sessionFile(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (a *API) handleFile(w http.ResponseWriter, r *http.Request) {
	path, name, ok := a.sessionFile(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeFile(w, r, path)
}

// sessionFile resolves the {session_id}/{filename} route parameters.
func (a *API) sessionFile(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	store, ok := a.store(w, r)
	if !ok {
		return "", "", false
	}
	name := chi.URLParam(r, "filename")
	path, err := store.Path(chi.URLParam(r, "session_id"), name)
	if err != nil {
		a.fail(w, r, err)
		return "", "", false
	}
	return path, name, true
}

// sessionFileInfo is one entry of a session listing.
type sessionFileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

func (a *API) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	store, ok := a.store(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "session_id")
	names, err := store.Files(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	files := make([]sessionFileInfo, 0, len(names))
	for _, name := range names {
		path, err := store.Path(id, name)
		if err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, sessionFileInfo{
			Filename:    name,
			Size:        info.Size(),
			DownloadURL: survey.FileURL(id, name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"files":      files,
	})
}

func (a *API) handleFeatureTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"feature_types":         survey.AvailableFeatureTypes,
		"default_feature_types": survey.DefaultFeatureTypes,
	})
}

func (a *API) handleSurveyFeatureTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"feature_types": survey.SurveyFeatureTypes,
		"description":   survey.SurveyDescription,
		"categories":    survey.SurveyCategories,
	})
}

func (a *API) handleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"examples": survey.Examples()})
}

func (a *API) store(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	store := a.service.Sessions()
	if store == nil {
		a.fail(w, r, core.NewError(core.ErrInternalError, "Session storage is not configured"))
		return nil, false
	}
	return store, true
}

// decode reads a JSON request body into dst, writing the error response on
// failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(w, http.StatusRequestEntityTooLarge,
				core.NewError(core.ErrInvalidInput, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)))
			return false
		}
		a.fail(w, r, core.NewValidationError(core.ErrInvalidInput, "Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// fail logs err by class and writes it.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := core.AsError(err)
	attrs := []any{"request_id", RequestID(r.Context()), "path", r.URL.Path, "code", e.Code, "error", e.Message}
	switch e.Class() {
	case core.ClassInternal:
		a.logger.Error("request failed", attrs...)
		monitoring.RecordError("api", string(e.Code))
	case core.ClassUpstream:
		a.logger.Warn("upstream failure", attrs...)
	default:
		a.logger.Debug("request rejected", attrs...)
	}
	writeError(w, e)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error *core.Error     `json:"error"`
	Class core.ErrorClass `json:"class"`
}

// writeError writes err with the status of its class.
func writeError(w http.ResponseWriter, err error) {
	e := core.AsError(err)
	writeErrorStatus(w, e.HTTPStatus(), e)
}

func writeErrorStatus(w http.ResponseWriter, status int, e *core.Error) {
	writeJSON(w, status, errorBody{Error: e, Class: e.Class()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// contentTypeFor maps generated file extensions to their media types.
func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	case ".geojson":
		return "application/geo+json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
