package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/geo"
)

var testBBox = geo.BoundingBox{MinLat: 40.775, MinLon: -73.975, MaxLat: 40.785, MaxLon: -73.965}

func newTestClient(url string, opts ...ClientOption) *OverpassClient {
	opts = append([]ClientOption{WithRateLimit(1000, 10)}, opts...)
	return NewOverpassClient(url, opts...)
}

func TestOverpassClient_Fetch(t *testing.T) {
	var gotQuery, gotUA, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotQuery = r.PostForm.Get("data")
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithUserAgent("survey-test/1.0"))
	c, err := client.Fetch(context.Background(), testBBox, []string{"amenity", "highway"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	wantQuery := `[out:json][timeout:25];(nwr["amenity"](40.775,-73.975,40.785,-73.965);nwr["highway"](40.775,-73.975,40.785,-73.965););out geom;`
	if gotQuery != wantQuery {
		t.Errorf("query = %s\nwant %s", gotQuery, wantQuery)
	}
	if gotUA != "survey-test/1.0" {
		t.Errorf("User-Agent = %s", gotUA)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %s", gotContentType)
	}
	if c.TotalElements != 9 || len(c.Nodes) != 2 {
		t.Errorf("collection = %d total, %d nodes", c.TotalElements, len(c.Nodes))
	}
}

func TestOverpassClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode core.ErrorCode
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", core.ErrRateLimit},
		{"gateway timeout", http.StatusGatewayTimeout, "", core.ErrServiceTimeout},
		{"bad query", http.StatusBadRequest, "parse error", core.ErrParseError},
		{"server error", http.StatusInternalServerError, "", core.ErrServiceUnavailable},
		{"garbage body", http.StatusOK, "<html>", core.ErrParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Fetch(context.Background(), testBBox, []string{"amenity"})
			if err == nil {
				t.Fatal("expected error")
			}
			e := core.AsError(err)
			if e.Code != string(tt.wantCode) {
				t.Errorf("code = %s, want %s", e.Code, tt.wantCode)
			}
			if e.Class() != core.ClassUpstream {
				t.Errorf("class = %s, want upstream", e.Class())
			}
			if calls != 1 {
				t.Errorf("upstream called %d times, want exactly 1", calls)
			}
		})
	}
}

func TestOverpassClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background(), testBBox, []string{"amenity"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := core.AsError(err).Code; code != string(core.ErrServiceTimeout) {
		t.Errorf("code = %s, want %s", code, core.ErrServiceTimeout)
	}
}

func TestOverpassClient_NetworkError(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Fetch(context.Background(), testBBox, []string{"amenity"})
	if err == nil {
		t.Fatal("expected network error")
	}
	if code := core.AsError(err).Code; code != string(core.ErrNetworkError) {
		t.Errorf("code = %s, want %s", code, core.ErrNetworkError)
	}
}

func TestOverpassClient_CheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"bad request still up", http.StatusBadRequest, false},
		{"down", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"elements":[]}`))
			}))
			defer server.Close()

			err := newTestClient(server.URL).CheckHealth(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckHealth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "overpass health check failed") {
				t.Errorf("unexpected error text: %v", err)
			}
		})
	}
}

func TestNewOverpassClientDefaults(t *testing.T) {
	c := NewOverpassClient("")
	if c.BaseURL() != DefaultOverpassURL {
		t.Errorf("BaseURL() = %s, want %s", c.BaseURL(), DefaultOverpassURL)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}
	if c.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %s", c.userAgent)
	}
}
