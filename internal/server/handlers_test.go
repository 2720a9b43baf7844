package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/internal/poster"
	"github.com/hyperjump/kinorec/internal/recommend"
	"github.com/hyperjump/kinorec/internal/storage"
)

func testCatalog() *catalog.Catalog {
	items := []models.Item{
		{ID: 19995, Title: "Avatar", ExternalID: "19995"},
		{ID: 285, Title: "Pirates of the Caribbean: At World's End", ExternalID: "285"},
		{ID: 206647, Title: "Spectre", ExternalID: "206647"},
		{ID: 49026, Title: "The Dark Knight Rises", ExternalID: "49026"},
	}
	rows := [][]float64{
		{1.0, 0.2, 0.3, 0.1},
		{0.2, 1.0, 0.5, 0.4},
		{0.3, 0.5, 1.0, 0.6},
		{0.1, 0.4, 0.6, 1.0},
	}
	return catalog.New(items, rows)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func newTestServer(t *testing.T, c *catalog.Catalog, svcOpts []recommend.ServiceOption, opts ...ServerOption) http.Handler {
	t.Helper()
	cfg := testConfig()
	cfg.Artifact.Path = filepath.Join(t.TempDir(), "catalog.json")
	cfg.Storage.DatabasePath = ""
	svc := recommend.NewService(catalog.NewHolder(c), &cfg.Recommend, svcOpts...)
	return NewServer(svc, cfg, nil, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleRecommendGet(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/recommend?title=Spectre&k=2", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID header = %q", got)
	}
	var resp models.RecommendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RequestID != "abc-123" || resp.K != 2 {
		t.Errorf("response: %+v", resp)
	}
	if len(resp.Recommendations) != 2 ||
		resp.Recommendations[0].Item.Title != "The Dark Knight Rises" ||
		resp.Recommendations[1].Item.Title != "Pirates of the Caribbean: At World's End" {
		t.Errorf("recommendations: %+v", resp.Recommendations)
	}
}

func TestHandleRecommendPost(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)
	body, _ := json.Marshal(models.RecommendQuery{Title: "Avatar"})
	w := do(t, h, http.MethodPost, "/api/v1/recommend", bytes.NewReader(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated X-Request-ID")
	}
	var resp models.RecommendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	// Four items: all three others fit under the default k of 5.
	if len(resp.Recommendations) != 3 || resp.K != 5 {
		t.Errorf("got %d recommendations, k=%d", len(resp.Recommendations), resp.K)
	}
	if resp.RequestID != w.Header().Get(RequestIDHeader) {
		t.Errorf("request id mismatch: body %q header %q", resp.RequestID, w.Header().Get(RequestIDHeader))
	}
}

func TestHandleRecommend_UnknownTitle(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)
	w := do(t, h, http.MethodGet, "/api/v1/recommend?title=Spectr", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Error, "Spectr") {
		t.Errorf("error message %q should name the title", resp.Error)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0] != "Spectre" {
		t.Errorf("suggestions: %v", resp.Suggestions)
	}
}

func TestHandleRecommend_BadRequests(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"blank title", http.MethodGet, "/api/v1/recommend?title=", ""},
		{"bad k", http.MethodGet, "/api/v1/recommend?title=Avatar&k=five", ""},
		{"bad posters", http.MethodGet, "/api/v1/recommend?title=Avatar&posters=maybe", ""},
		{"bad body", http.MethodPost, "/api/v1/recommend", "{"},
		{"blank title body", http.MethodPost, "/api/v1/recommend", `{"title": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := do(t, h, tt.method, tt.target, body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleRecommend_CorruptRow(t *testing.T) {
	c := catalog.New([]models.Item{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}, [][]float64{{1}, {0.5, 1}})
	h := newTestServer(t, c, nil)
	w := do(t, h, http.MethodGet, "/api/v1/recommend?title=A", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", w.Code)
	}
}

func TestHandleRecommend_NoCatalog(t *testing.T) {
	h := newTestServer(t, nil, nil)
	w := do(t, h, http.MethodGet, "/api/v1/recommend?title=A", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHandleRecommend_Posters(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/49026":
			fmt.Fprint(w, `{"id": 49026, "poster_path": "/dkr.jpg"}`)
		case "/movie/285":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status_message": "The resource you requested could not be found."}`)
		default:
			fmt.Fprint(w, `{"poster_path": "/other.jpg"}`)
		}
	}))
	defer api.Close()

	client := poster.NewClient(&config.MetadataConfig{
		BaseURL:      api.URL,
		ImageBaseURL: "http://image.tmdb.org/t/p/w500/",
		APIKey:       "test-key",
		Language:     "en-US",
		Timeout:      2 * time.Second,
	})
	resolver := poster.NewResolver(client, poster.NewCache(10), 2)
	h := newTestServer(t, testCatalog(), []recommend.ServiceOption{recommend.WithPosterResolver(resolver)}, WithBreaker(client))

	w := do(t, h, http.MethodGet, "/api/v1/recommend?title=Spectre&k=2&posters=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.RecommendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("recommendations: %d", len(resp.Recommendations))
	}
	dkr, pirates := resp.Recommendations[0], resp.Recommendations[1]
	if dkr.PosterURL != "http://image.tmdb.org/t/p/w500/dkr.jpg" || dkr.Placeholder {
		t.Errorf("dark knight rises poster: %+v", dkr)
	}
	if !pirates.Placeholder || pirates.PosterURL != "" || pirates.PosterError == "" {
		t.Errorf("pirates should be a placeholder: %+v", pirates)
	}
}

func TestHandleTitles(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)

	w := do(t, h, http.MethodGet, "/api/v1/titles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var all models.TitlesResponse
	if err := json.NewDecoder(w.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if all.Total != 4 || all.Matches[0].Item.Title != "Avatar" {
		t.Errorf("titles: %+v", all)
	}

	w = do(t, h, http.MethodGet, "/api/v1/titles?q=dark&limit=5", nil)
	var found models.TitlesResponse
	if err := json.NewDecoder(w.Body).Decode(&found); err != nil {
		t.Fatal(err)
	}
	if found.Total != 1 || found.Matches[0].Item.Title != "The Dark Knight Rises" {
		t.Errorf("search: %+v", found)
	}

	w = do(t, h, http.MethodGet, "/api/v1/titles?limit=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: got %d, want 400", w.Code)
	}
}

func TestHandleGetItem(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)

	w := do(t, h, http.MethodGet, "/api/v1/items/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var item models.Item
	if err := json.NewDecoder(w.Body).Decode(&item); err != nil {
		t.Fatal(err)
	}
	if item.Title != "Spectre" || item.Index != 2 {
		t.Errorf("item: %+v", item)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/items/4", nil); w.Code != http.StatusNotFound {
		t.Errorf("out of range: got %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/items/-1", nil); w.Code != http.StatusNotFound {
		t.Errorf("negative: got %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/items/x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-integer: got %d, want 400", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "posters.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.PutPoster(context.Background(), "19995", "http://image.tmdb.org/t/p/w500/a.jpg"); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, testCatalog(), nil, WithStorage(store))

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["items"] != float64(4) {
		t.Errorf("items: %v", resp["items"])
	}
	if resp["cached_posters"] != float64(1) {
		t.Errorf("cached_posters: %v", resp["cached_posters"])
	}
	if fp, _ := resp["fingerprint"].(string); len(fp) != 64 {
		t.Errorf("fingerprint: %v", resp["fingerprint"])
	}
	if _, ok := resp["config"].(map[string]interface{}); !ok {
		t.Errorf("config missing: %v", resp)
	}
	if usage, ok := resp["disk_usage"].(map[string]interface{}); !ok || usage["poster_db"] == nil {
		t.Errorf("disk_usage breakdown missing: %v", resp["disk_usage"])
	}
}

func TestHandleHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, testCatalog(), nil)

	if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
	_ = do(t, h, http.MethodGet, "/api/v1/recommend?title=Avatar", nil)
	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "kinorec_recommend_requests_total") {
		t.Error("metrics output missing kinorec_recommend_requests_total")
	}
}
