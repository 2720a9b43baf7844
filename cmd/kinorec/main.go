// Package main is the kinorec CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/artifact"
	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/cli"
	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/internal/server"
	"github.com/hyperjump/kinorec/internal/storage"
	"github.com/hyperjump/kinorec/internal/watcher"
	"github.com/hyperjump/kinorec/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kinorec/config.yaml"

const defaultServerURL = "http://localhost:8080"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "titles":
		runTitles()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kinorec version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger, componentOptions{
		posters:         true,
		persistentIndex: true,
	})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Artifact.WatchOrDefault() {
		watchSvc := watcher.NewWatcher(
			cfg.Artifact.Path,
			watcher.CatalogReloader(cfg.Artifact.Path, cfg.Artifact.Format, components.Service, logger),
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	var srvOpts []server.ServerOption
	if components.Storage != nil {
		srvOpts = append(srvOpts, server.WithStorage(components.Storage))
	}
	if components.PosterClient != nil {
		srvOpts = append(srvOpts, server.WithBreaker(components.PosterClient))
	}
	srv := server.NewServer(components.Service, cfg, logger, srvOpts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// buildTitle joins positional args into a single title so quoting is optional.
func buildTitle(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument, so "kinorec recommend Avatar -k 10" would otherwise ignore -k.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// recommendDefaultKFromConfig returns recommend.default_k from the config at path, or 5
// when the config cannot be loaded.
func recommendDefaultKFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Recommend.DefaultK <= 0 {
		return 5
	}
	return cfg.Recommend.DefaultK
}

func runRecommend() {
	args := argsReorder(os.Args[2:])
	defaultK := recommendDefaultKFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the artifact directly)")
	k := fs.Int("k", defaultK, "number of recommendations")
	posters := fs.Bool("posters", true, "resolve poster images")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(args)

	title := buildTitle(fs.Args())
	if title == "" {
		fmt.Fprintln(os.Stderr, "Error: title required")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	query := &models.RecommendQuery{Title: title, K: *k, Posters: *posters}
	var response *models.RecommendResponse
	if *serverURL != "" {
		response, err = recommendViaHTTP(*serverURL, query)
	} else {
		response, err = recommendDirect(*configPath, query)
	}
	if err != nil {
		if nf, ok := isNotFound(err); ok {
			_ = cli.WriteNotFound(os.Stderr, nf.Title, nf.Suggestions)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		os.Exit(1)
	}
}

// recommendDirect loads the artifact in-process. Unknown titles are reported as
// *notFoundError so both modes print the same "did you mean" message.
func recommendDirect(configPath string, query *models.RecommendQuery) (*models.RecommendResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{posters: query.Posters})
	if err != nil {
		return nil, err
	}
	defer components.Close()

	response, err := components.Service.Recommend(ctx, query)
	if err != nil && errors.Is(err, catalog.ErrNotFound) {
		return nil, &notFoundError{Title: query.Title, Suggestions: components.Service.Suggest(query.Title)}
	}
	return response, err
}

func runTitles() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("titles", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the artifact directly)")
	limit := fs.Int("limit", 0, "maximum number of titles (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	query := buildTitle(fs.Args())

	var response *models.TitlesResponse
	if *serverURL != "" {
		response, err = titlesViaHTTP(*serverURL, query, *limit)
	} else {
		response, err = titlesDirect(*configPath, query, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Titles failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTitles(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		os.Exit(1)
	}
}

func titlesDirect(configPath, query string, limit int) (*models.TitlesResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Service.Titles(ctx, query, limit)
}

// runImport validates an artifact and writes it into a SQLite catalog database, which
// can then be served with artifact.format "sqlite".
func runImport() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	format := fs.String("format", "", "artifact format: json, xlsx, sqlite (default: from extension)")
	out := fs.String("out", "", "output SQLite database path")
	_ = fs.Parse(args)

	if fs.NArg() < 1 || *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: kinorec import --out <catalog.db> [--format json|xlsx] <artifact>")
		os.Exit(1)
	}
	if err := importArtifact(context.Background(), fs.Arg(0), *format, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %s into %s\n", fs.Arg(0), *out)
}

func importArtifact(ctx context.Context, src, format, dst string) error {
	c, err := artifact.Load(ctx, src, format)
	if err != nil {
		return err
	}
	items := make([]models.Item, c.Size())
	rows := make([][]float64, c.Size())
	for i := range items {
		item, err := c.GetItem(i)
		if err != nil {
			return err
		}
		items[i] = item
		row, err := c.Row(i)
		if err != nil {
			return err
		}
		rows[i] = row
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(dst)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveCatalog(ctx, items, rows)
}

// statusResponse is the JSON shape of /api/v1/status.
type statusResponse struct {
	UptimeSeconds  int64                 `json:"uptime_seconds"`
	Items          int                   `json:"items"`
	Fingerprint    string                `json:"fingerprint,omitempty"`
	CachedPosters  *int64                `json:"cached_posters,omitempty"`
	Breaker        string                `json:"poster_circuit_breaker,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	DiskUsage      *storage.DiskUsage    `json:"disk_usage,omitempty"`
}

type statusConfigResponse struct {
	ArtifactPath   string `json:"artifact_path"`
	ArtifactFormat string `json:"artifact_format"`
	ArtifactWatch  bool   `json:"artifact_watch"`
	DatabasePath   string `json:"database_path"`
	BleveIndexPath string `json:"bleve_index_path"`
	DefaultK       int    `json:"default_k"`
	MaxK           int    `json:"max_k"`
	PostersEnabled bool   `json:"posters_enabled"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the artifact directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printStatus(status)
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c, err := artifact.Load(context.Background(), cfg.Artifact.Path, cfg.Artifact.Format)
	if err != nil {
		return nil, err
	}
	status := &statusResponse{
		Items:       c.Size(),
		Fingerprint: c.Fingerprint(),
		Config: &statusConfigResponse{
			ArtifactPath:   cfg.Artifact.Path,
			ArtifactFormat: cfg.Artifact.Format,
			ArtifactWatch:  cfg.Artifact.WatchOrDefault(),
			DatabasePath:   cfg.Storage.DatabasePath,
			BleveIndexPath: cfg.Storage.BleveIndexPath,
			DefaultK:       cfg.Recommend.DefaultK,
			MaxK:           cfg.Recommend.MaxK,
			PostersEnabled: cfg.Metadata.EnabledOrDefault(),
		},
	}
	if usage, err := storage.MeasureDiskUsage(cfg.Artifact.Path, cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		total := usage.Total()
		status.DiskUsageBytes = &total
		status.DiskUsage = &usage
	}
	return status, nil
}

func printStatus(s *statusResponse) {
	fmt.Printf("Items:           %d\n", s.Items)
	if s.Fingerprint != "" {
		fmt.Printf("Fingerprint:     %s\n", utils.Truncate(s.Fingerprint, 16))
	}
	if s.UptimeSeconds > 0 {
		fmt.Printf("Uptime:          %s\n", time.Duration(s.UptimeSeconds)*time.Second)
	}
	if s.CachedPosters != nil {
		fmt.Printf("Cached posters:  %d\n", *s.CachedPosters)
	}
	if s.Breaker != "" {
		fmt.Printf("Poster breaker:  %s\n", s.Breaker)
	}
	if s.DiskUsageBytes != nil {
		fmt.Printf("Disk usage:      %s\n", formatBytes(*s.DiskUsageBytes))
	}
	if u := s.DiskUsage; u != nil {
		fmt.Printf("  Artifact:      %s\n", formatBytes(u.Artifact))
		fmt.Printf("  Poster DB:     %s\n", formatBytes(u.PosterDB))
		fmt.Printf("  Title index:   %s\n", formatBytes(u.TitleIndex))
	}
	if c := s.Config; c != nil {
		fmt.Println("Config:")
		fmt.Printf("  Artifact:      %s (format %q, watch %v)\n", c.ArtifactPath, c.ArtifactFormat, c.ArtifactWatch)
		fmt.Printf("  Database:      %s\n", c.DatabasePath)
		fmt.Printf("  Title index:   %s\n", c.BleveIndexPath)
		fmt.Printf("  k:             default %d, max %d\n", c.DefaultK, c.MaxK)
		fmt.Printf("  Posters:       %v\n", c.PostersEnabled)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printUsage() {
	fmt.Println(`kinorec - Similarity-based movie recommendations

Usage:
  kinorec server [flags]              Start the HTTP server
  kinorec recommend [flags] <title>   Recommend items similar to a title
  kinorec titles [flags] [query]      List or search catalog titles
  kinorec import [flags] <artifact>   Validate an artifact and write it to SQLite
  kinorec status [flags]              Show catalog/storage status
  kinorec version                     Show version
  kinorec help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kinorec/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (for direct mode; also used for the default k)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to load the artifact directly.
  -k int             Number of recommendations (default from config, or 5)
  --posters          Resolve poster images (default: true)
  --output string    Output format: text, compact, or json (default: text)

Titles Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Maximum number of titles (default: all)
  --output string    Output format: text, compact, or json (default: text)

Import Flags:
  --format string    Artifact format: json, xlsx, sqlite (default: from extension)
  --out string       Output SQLite database path

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --output string    Output format: text or json (default: text)

Examples:
  kinorec server
  kinorec recommend Avatar
  kinorec recommend "The Dark Knight" -k 10
  kinorec recommend --server "" --posters=false --output compact Spectre
  kinorec titles dark
  kinorec import --out catalog.db catalog.json
  kinorec status --output json`)
}
