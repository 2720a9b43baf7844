package poster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kinorec/internal/config"
)

func testConfig(baseURL string) *config.MetadataConfig {
	return &config.MetadataConfig{
		BaseURL:      baseURL,
		ImageBaseURL: "http://image.tmdb.org/t/p/w500/",
		APIKey:       "secret",
		Language:     "en-US",
		Timeout:      2 * time.Second,
	}
}

func TestClient_FetchPosterURL(t *testing.T) {
	var gotPath, gotKey, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotLang = r.URL.Query().Get("language")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":19995,"title":"Avatar","poster_path":"/kyeqWdyUXW608qlYkRqosgbbJyK.jpg"}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	got, err := c.FetchPosterURL(context.Background(), "19995")
	if err != nil {
		t.Fatal(err)
	}
	want := "http://image.tmdb.org/t/p/w500/kyeqWdyUXW608qlYkRqosgbbJyK.jpg"
	if got != want {
		t.Errorf("url = %s, want %s", got, want)
	}
	if gotPath != "/movie/19995" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "secret" || gotLang != "en-US" {
		t.Errorf("query: api_key=%q language=%q", gotKey, gotLang)
	}
}

func TestClient_FetchPosterURL_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"not found", http.StatusNotFound, `{"status_message":"The resource you requested could not be found."}`, http.StatusNotFound},
		{"server error", http.StatusInternalServerError, `oops`, http.StatusInternalServerError},
		{"missing poster_path", http.StatusOK, `{"id":1,"title":"X"}`, http.StatusOK},
		{"null poster_path", http.StatusOK, `{"id":1,"poster_path":null}`, http.StatusOK},
		{"malformed json", http.StatusOK, `{"id":`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL))
			u, err := c.FetchPosterURL(context.Background(), "1")
			if u != "" {
				t.Errorf("expected empty url, got %s", u)
			}
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("expected ErrFetch, got %v", err)
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T", err)
			}
			if fe.StatusCode != tt.wantStatus || fe.ExternalID != "1" {
				t.Errorf("got %+v", fe)
			}
		})
	}
}

func TestClient_FetchPosterURL_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(testConfig(base))
	_, err := c.FetchPosterURL(context.Background(), "1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("status = %d, want 0", fe.StatusCode)
	}
}

func TestClient_FetchPosterURL_NoAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	cfg.APIKeyEnv = "KINOREC_TEST_UNSET_KEY"
	t.Setenv("KINOREC_TEST_UNSET_KEY", "")
	_, err := NewClient(cfg).FetchPosterURL(context.Background(), "1")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("no request should be sent without an api key")
	}
}

func TestClient_FetchPosterURL_EmptyID(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"))
	if _, err := c.FetchPosterURL(context.Background(), " "); !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	for i := 0; i < 8; i++ {
		_, _ = c.FetchPosterURL(context.Background(), "1")
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("server calls = %d, want 5 before the breaker opens", got)
	}
	if c.State() != "open" {
		t.Errorf("state = %s, want open", c.State())
	}
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	for i := 0; i < 10; i++ {
		_, _ = c.FetchPosterURL(context.Background(), "1")
	}
	if c.State() != "closed" {
		t.Errorf("state = %s, want closed", c.State())
	}
}

func TestJoinImageURL(t *testing.T) {
	tests := []struct{ base, path, want string }{
		{"http://image.tmdb.org/t/p/w500/", "/a.jpg", "http://image.tmdb.org/t/p/w500/a.jpg"},
		{"http://image.tmdb.org/t/p/w500", "a.jpg", "http://image.tmdb.org/t/p/w500/a.jpg"},
		{"http://img/", "a.jpg", "http://img/a.jpg"},
	}
	for _, tt := range tests {
		if got := JoinImageURL(tt.base, tt.path); got != tt.want {
			t.Errorf("JoinImageURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestFetchError_Message(t *testing.T) {
	err := &FetchError{ExternalID: "7", StatusCode: 404, Err: errors.New("gone")}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), `"7"`) {
		t.Errorf("message: %s", err.Error())
	}
}
