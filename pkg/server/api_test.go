package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/session"
	"github.com/NERVsystems/osmsurvey/pkg/survey"
	"github.com/NERVsystems/osmsurvey/pkg/tools"
)

const overpassFixture = `{"elements": [
  {"type": "node", "id": 1, "lat": 51.5038, "lon": -0.1191, "tags": {"amenity": "fire_hydrant"}},
  {"type": "node", "id": 2, "lat": 51.5039, "lon": -0.1190, "tags": {"highway": "traffic_signals"}},
  {"type": "way", "id": 3, "nodes": [10, 11], "tags": {"highway": "footway"},
   "geometry": [{"lat": 51.5034, "lon": -0.1195}, {"lat": 51.5042, "lon": -0.1187}]}
]}`

const bboxJSON = `{"min_lat": 51.5033, "min_lon": -0.1196, "max_lat": 51.5043, "max_lon": -0.1186}`

type testEnv struct {
	handler  http.Handler
	store    *session.Store
	upstream *atomic.Int32
}

func newTestEnv(t *testing.T, payload string, limits RouteLimits, authToken string) *testEnv {
	t.Helper()
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, payload)
	}))
	t.Cleanup(upstream.Close)

	store, err := session.NewStore(t.TempDir(), session.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(store.Purge)

	client := osm.NewOverpassClient(upstream.URL, osm.WithRateLimit(1000, 100), osm.WithTimeout(5*time.Second))
	svc := survey.NewService(client, survey.Options{Sessions: store, Logger: discardLogger()})
	api := NewAPI(svc, APIOptions{
		Limits: limits,
		Logger: discardLogger(),
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(api.Stop)

	mcp := NewServer(tools.NewRegistry(discardLogger(), svc, "http://localhost:8000"), discardLogger())
	cfg := DefaultHTTPConfig()
	cfg.AuthToken = authToken
	cfg.AllowedOrigins = []string{"http://localhost:3000"}
	srv := NewHTTPServer(api, mcp, cfg, discardLogger())
	return &testEnv{handler: srv.Handler(), store: store, upstream: &calls}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:40000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health map[string]string
	decodeBody(t, rec, &health)
	if health["status"] != "healthy" || health["timestamp"] != "2024-05-01T12:00:00Z" || health["version"] == "" {
		t.Errorf("health = %v", health)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	rec = env.do(t, http.MethodGet, "/", "")
	var root map[string]any
	decodeBody(t, rec, &root)
	if _, ok := root["endpoints"]; !ok {
		t.Errorf("root lacks endpoints: %v", root)
	}
}

func TestQueryEndpoint(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	rec := env.do(t, http.MethodPost, "/query", `{"bbox": `+bboxJSON+`, "feature_types": ["highway", "amenity"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.TotalElements != 3 || len(resp.Nodes) != 2 || len(resp.Ways) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if strings.Join(resp.FeatureTypes, ",") != "highway,amenity" {
		t.Errorf("feature_types = %v", resp.FeatureTypes)
	}
}

func TestQueryEndpointErrors(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	tests := []struct {
		name      string
		body      string
		wantCode  core.ErrorCode
		wantClass core.ErrorClass
		status    int
	}{
		{"malformed json", `{"bbox": `, core.ErrInvalidInput, core.ClassInvalidInput, http.StatusBadRequest},
		{"inverted bbox", `{"bbox": {"min_lat": 51.6, "min_lon": -0.1, "max_lat": 51.5, "max_lon": -0.09}}`, core.ErrInvalidBBox, core.ClassInvalidInput, http.StatusBadRequest},
		{"oversized bbox", `{"bbox": {"min_lat": 51.0, "min_lon": -0.5, "max_lat": 51.5, "max_lon": 0.0}}`, core.ErrBBoxTooLarge, core.ClassInvalidInput, http.StatusBadRequest},
		{"invalid output", `{"bbox": ` + bboxJSON + `, "outputs": ["pdf"]}`, core.ErrInvalidOutputType, core.ClassInvalidInput, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/query", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorBody
			decodeBody(t, rec, &body)
			if body.Error == nil || body.Error.Code != string(tt.wantCode) || body.Class != tt.wantClass {
				t.Errorf("error body = %s", rec.Body.String())
			}
		})
	}
	if n := env.upstream.Load(); n != 0 {
		t.Errorf("invalid requests reached the upstream %d times", n)
	}
}

func TestQueryEndpointUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	store, err := session.NewStore(t.TempDir(), session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Purge()
	svc := survey.NewService(osm.NewOverpassClient(upstream.URL, osm.WithRateLimit(1000, 100)), survey.Options{Sessions: store})
	api := NewAPI(svc, APIOptions{Logger: discardLogger()})
	defer api.Stop()
	handler := NewHTTPServer(api, nil, DefaultHTTPConfig(), discardLogger()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"bbox": `+bboxJSON+`}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Class != core.ClassUpstream {
		t.Errorf("class = %s", body.Class)
	}
}

func TestGenerateAndDownload(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	rec := env.do(t, http.MethodPost, "/generate", `{"bbox": `+bboxJSON+`, "outputs": ["mach9", "map"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp generateResponse
	decodeBody(t, rec, &resp)
	if !resp.Success || resp.Message != "Generated 4 files successfully" {
		t.Errorf("unexpected response: %+v", resp)
	}
	id := resp.Data.SessionID
	wantFiles := []string{
		"/files/" + id + "/osm_map.geojson",
		"/files/" + id + "/mach9_engineering_report.txt",
		"/files/" + id + "/mach9_data.json",
		"/files/" + id + "/feature_rollup.csv",
	}
	if strings.Join(resp.Files, " ") != strings.Join(wantFiles, " ") {
		t.Errorf("files = %v, want %v", resp.Files, wantFiles)
	}

	t.Run("inline file", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/files/"+id+"/mach9_engineering_report.txt", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline") {
			t.Errorf("disposition = %s", rec.Header().Get("Content-Disposition"))
		}
		if !strings.Contains(rec.Body.String(), "Fire Hydrants: 1") {
			t.Error("report body missing hydrant count")
		}
	})

	t.Run("map content type", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/files/"+id+"/osm_map.geojson", "")
		if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
			t.Errorf("content type = %s", ct)
		}
	})

	t.Run("attachment download", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/download/"+id+"/feature_rollup.csv", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="feature_rollup.csv"` {
			t.Errorf("disposition = %s", got)
		}
	})

	t.Run("session listing", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/session/"+id+"/files", "")
		var listing struct {
			SessionID string            `json:"session_id"`
			Files     []sessionFileInfo `json:"files"`
		}
		decodeBody(t, rec, &listing)
		if listing.SessionID != id || len(listing.Files) != 4 {
			t.Fatalf("listing = %+v", listing)
		}
		for _, f := range listing.Files {
			if f.Size <= 0 || f.DownloadURL != "/files/"+id+"/"+f.Filename {
				t.Errorf("bad entry %+v", f)
			}
		}
	})
}

func TestSessionFileErrors(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")
	sess, err := env.store.Create()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		status int
		code   core.ErrorCode
	}{
		{"malformed session id", "/download/not-a-uuid/osm_report.txt", http.StatusBadRequest, core.ErrInvalidSession},
		{"unknown session", "/download/6f1c8e0a-5f7e-4b1b-9c43-0d2f6b8e9a11/osm_report.txt", http.StatusNotFound, core.ErrNotFound},
		{"missing file", "/download/" + sess.ID + "/osm_report.txt", http.StatusNotFound, core.ErrNotFound},
		{"traversal", "/files/" + sess.ID + "/..%5Csecret", http.StatusBadRequest, core.ErrInvalidFilename},
		{"unknown session listing", "/session/6f1c8e0a-5f7e-4b1b-9c43-0d2f6b8e9a11/files", http.StatusNotFound, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var body errorBody
			decodeBody(t, rec, &body)
			if body.Error.Code != string(tt.code) {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.code)
			}
		})
	}
}

func TestGenerateNoData(t *testing.T) {
	env := newTestEnv(t, `{"elements": []}`, RouteLimits{}, "")

	rec := env.do(t, http.MethodPost, "/generate", `{"bbox": `+bboxJSON+`}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Error.Message != "No data found in the specified bounding box" || body.Class != core.ClassNoData {
		t.Errorf("body = %s", rec.Body.String())
	}
	if env.store.Len() != 0 {
		t.Error("a failed generation left a session behind")
	}
}

func TestCSVRollupEndpoint(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	rec := env.do(t, http.MethodPost, "/csv-rollup", `{"bbox": `+bboxJSON+`, "feature_types": ["highway", "amenity"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=osm_feature_rollup.csv" {
		t.Errorf("disposition = %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("Feature_Type,Feature_Value,Count,Category\r\n")) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestInfoEndpoints(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	var types struct {
		FeatureTypes []string `json:"feature_types"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/feature-types", ""), &types)
	if len(types.FeatureTypes) != len(survey.AvailableFeatureTypes) {
		t.Errorf("feature-types returned %d keys", len(types.FeatureTypes))
	}

	var mach9 struct {
		FeatureTypes []string            `json:"feature_types"`
		Description  string              `json:"description"`
		Categories   map[string][]string `json:"categories"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/mach9-feature-types", ""), &mach9)
	if len(mach9.FeatureTypes) != len(survey.SurveyFeatureTypes) || mach9.Description == "" || len(mach9.Categories) == 0 {
		t.Errorf("mach9-feature-types = %+v", mach9)
	}

	var examples struct {
		Examples map[string]survey.Example `json:"examples"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/examples", ""), &examples)
	if _, ok := examples.Examples["mach9_engineering"]; !ok || len(examples.Examples) != 5 {
		t.Errorf("examples = %v", examples.Examples)
	}
}

func TestRouteRateLimit(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{Query: 20, Generate: 10, CSV: 10, Download: 30, Info: 2}, "")

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodGet, "/feature-types", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/examples", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third info request status = %d, want 429", rec.Code)
	}
	// Other route classes keep their own budget.
	if rec := env.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	const token = "c0rrect-h0rse-battery-staple"
	env := newTestEnv(t, overpassFixture, RouteLimits{}, token)

	if rec := env.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health should stay public, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/feature-types", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/feature-types", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")

	rec := env.do(t, http.MethodGet, "/nowhere", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Class != core.ClassNotFound {
		t.Errorf("class = %s", body.Class)
	}

	if rec := env.do(t, http.MethodGet, "/query", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /query status = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, overpassFixture, RouteLimits{}, "")
	env.do(t, http.MethodGet, "/health", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "osmsurvey_api_requests_total") {
		t.Error("metrics output lacks API request counter")
	}
}
