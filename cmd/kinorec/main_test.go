package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kinorec/internal/artifact"
	"github.com/hyperjump/kinorec/internal/models"
)

const testArtifact = `{
  "movies": {
    "movie_id": {"0": 19995, "1": 206647, "2": 49026, "3": 155},
    "title": {"0": "Avatar", "1": "Spectre", "2": "The Dark Knight Rises", "3": "The Dark Knight"}
  },
  "similarity": [
    [1.0, 0.2, 0.1, 0.3],
    [0.2, 1.0, 0.4, 0.5],
    [0.1, 0.4, 1.0, 0.9],
    [0.3, 0.5, 0.9, 1.0]
  ]
}`

// writeTestConfig writes a config plus a JSON artifact into a temp dir and returns the config path.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(testArtifact), 0600); err != nil {
		t.Fatal(err)
	}
	content := `
artifact:
  path: "./catalog.json"
  watch: false
storage:
  database_path: "./posters.db"
metadata:
  enabled: false
` + extra
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after title are moved first",
			args:     []string{"The Dark Knight", "-k", "10"},
			expected: []string{"-k", "10", "The Dark Knight"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "10", "The Dark Knight"},
			expected: []string{"-k", "10", "The Dark Knight"},
		},
		{
			name:     "title only returns unchanged",
			args:     []string{"Avatar"},
			expected: []string{"Avatar"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "unquoted words then flags",
			args:     []string{"the", "dark", "knight", "--output", "json"},
			expected: []string{"--output", "json", "the", "dark", "knight"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"Avatar"}, "Avatar"},
		{"multiple words", []string{"The", "Dark", "Knight"}, "The Dark Knight"},
		{"quoted title", []string{"The Dark Knight"}, "The Dark Knight"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTitle(tt.args); got != tt.expected {
				t.Errorf("buildTitle(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-k", "5", "Avatar"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "Avatar"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config flag without value", []string{"Avatar", "-config"}, "/default.yaml", "/default.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := configPathFromArgs(tt.args, tt.defaultPath); got != tt.want {
				t.Errorf("configPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecommendDefaultKFromConfig(t *testing.T) {
	configPath := writeTestConfig(t, "recommend:\n  default_k: 3\n  max_k: 20\n")
	if k := recommendDefaultKFromConfig(configPath); k != 3 {
		t.Errorf("recommendDefaultKFromConfig() = %d, want 3", k)
	}
	if k := recommendDefaultKFromConfig(filepath.Join(t.TempDir(), "missing.yaml")); k != 5 {
		t.Errorf("recommendDefaultKFromConfig(missing) = %d, want 5", k)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	configPath := writeTestConfig(t, "debug: true\n")
	dir := filepath.Dir(configPath)
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	configPath := writeTestConfig(t, "server:\n  host: \"127.0.0.1\"\n  port: 9000\n")
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if want := filepath.Join(filepath.Dir(configPath), "catalog.json"); cfg.Artifact.Path != want {
		t.Errorf("artifact path = %s, want %s", cfg.Artifact.Path, want)
	}
}

func TestRecommendDirect(t *testing.T) {
	configPath := writeTestConfig(t, "")
	resp, err := recommendDirect(configPath, &models.RecommendQuery{Title: "The Dark Knight", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range resp.Recommendations {
		got = append(got, r.Item.Title)
	}
	want := []string{"The Dark Knight Rises", "Spectre"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("recommendations = %v, want %v", got, want)
	}
}

func TestRecommendDirect_UnknownTitle(t *testing.T) {
	configPath := writeTestConfig(t, "")
	_, err := recommendDirect(configPath, &models.RecommendQuery{Title: "The Dark Knigth"})
	nf, ok := isNotFound(err)
	if !ok {
		t.Fatalf("expected notFoundError, got %v", err)
	}
	if len(nf.Suggestions) == 0 || nf.Suggestions[0] != "The Dark Knight" {
		t.Errorf("suggestions = %v, want The Dark Knight first", nf.Suggestions)
	}
}

func TestTitlesDirect(t *testing.T) {
	configPath := writeTestConfig(t, "")
	resp, err := titlesDirect(configPath, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 4 || len(resp.Matches) != 4 {
		t.Errorf("titles total = %d, matches = %d, want 4", resp.Total, len(resp.Matches))
	}
}

func TestStatusDirect(t *testing.T) {
	configPath := writeTestConfig(t, "")
	status, err := statusDirect(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if status.Items != 4 || status.Fingerprint == "" {
		t.Errorf("status = %+v", status)
	}
	if status.Config == nil || status.Config.PostersEnabled {
		t.Errorf("config = %+v, want posters disabled", status.Config)
	}
	if status.DiskUsage == nil || status.DiskUsage.Artifact != int64(len(testArtifact)) {
		t.Errorf("disk usage = %+v, want artifact of %d bytes", status.DiskUsage, len(testArtifact))
	}
}

func TestImportArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(src, []byte(testArtifact), 0600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "catalog.db")
	ctx := context.Background()
	if err := importArtifact(ctx, src, "", dst); err != nil {
		t.Fatal(err)
	}

	fromJSON, err := artifact.Load(ctx, src, "")
	if err != nil {
		t.Fatal(err)
	}
	fromDB, err := artifact.Load(ctx, dst, "")
	if err != nil {
		t.Fatal(err)
	}
	if fromJSON.Fingerprint() != fromDB.Fingerprint() {
		t.Error("imported catalog differs from the source artifact")
	}
}

func TestImportArtifact_RejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "catalog.json")
	bad := `{"items": [{"id": 1, "title": "A"}, {"id": 2, "title": "B"}], "similarity": [[1, 0.5], [0.5]]}`
	if err := os.WriteFile(src, []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "catalog.db")
	if err := importArtifact(context.Background(), src, "", dst); err == nil {
		t.Fatal("expected error for malformed artifact")
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("malformed artifact should not create %s", dst)
	}
}

func TestRecommendViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/recommend" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(readBody(t, r), "Avatr") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"item not found","suggestions":["Avatar"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"request_id":"abc","query":"Avatar","recommendations":[{"item":{"index":3,"id":155,"title":"The Dark Knight","external_id":"155"},"score":0.3,"rank":1}]}`))
	}))
	defer srv.Close()

	resp, err := recommendViaHTTP(srv.URL, &models.RecommendQuery{Title: "Avatar", K: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Item.Title != "The Dark Knight" {
		t.Errorf("unexpected response: %+v", resp)
	}

	_, err = recommendViaHTTP(srv.URL, &models.RecommendQuery{Title: "Avatr"})
	nf, ok := isNotFound(err)
	if !ok {
		t.Fatalf("expected notFoundError, got %v", err)
	}
	if !reflect.DeepEqual(nf.Suggestions, []string{"Avatar"}) {
		t.Errorf("suggestions = %v", nf.Suggestions)
	}
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"catalog not loaded"}`))
	}))
	defer srv.Close()

	_, err := statusViaHTTP(srv.URL)
	if err == nil || !strings.Contains(err.Error(), "503: catalog not loaded") {
		t.Errorf("statusViaHTTP() error = %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read request body: %v", err)
	}
	return string(b)
}
