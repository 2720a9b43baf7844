// Package poster resolves display poster URLs for catalog items from a movie-metadata API.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/metrics"
)

const breakerName = "metadata-api"

// Fetcher resolves the poster URL for one external id.
type Fetcher interface {
	FetchPosterURL(ctx context.Context, externalID string) (string, error)
}

// Client fetches movie details from the metadata API and builds poster URLs.
// Requests are rate limited and pass through a circuit breaker; each call is independent.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	imageBaseURL string
	apiKey       string
	language     string
	limiter      *rate.Limiter
	cb           *gobreaker.CircuitBreaker[string]
	logger       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for breaker transitions and request failures.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

type movieResponse struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path"`
}

// NewClient creates a metadata client from cfg.
// Circuit breaker configuration:
// - 1 probe request in half-open state
// - 1 minute measurement window
// - 30 second cool-down before probing again
// - opens after 5 consecutive transport or server failures
func NewClient(cfg *config.MetadataConfig, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: cfg.ImageBaseURL,
		apiKey:       cfg.ResolveAPIKey(),
		language:     cfg.Language,
		logger:       zap.NewNop(),
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)
	for _, opt := range opts {
		opt(c)
	}

	metrics.CircuitBreakerState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Item-level answers (404, no poster_path) say nothing about API health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var fe *FetchError
			if errors.As(err, &fe) && fe.StatusCode > 0 && fe.StatusCode < 500 && fe.StatusCode != http.StatusTooManyRequests {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})
	return c
}

// FetchPosterURL looks up externalID and returns the image base URL joined with its poster_path.
// Every failure is a *FetchError.
func (c *Client) FetchPosterURL(ctx context.Context, externalID string) (string, error) {
	if strings.TrimSpace(externalID) == "" {
		return "", &FetchError{ExternalID: externalID, Err: errors.New("empty external id")}
	}
	if c.apiKey == "" {
		return "", &FetchError{ExternalID: externalID, Err: errors.New("metadata api key not configured")}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &FetchError{ExternalID: externalID, Err: err}
	}
	posterURL, err := c.cb.Execute(func() (string, error) {
		return c.fetch(ctx, externalID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordPosterFetch("rejected")
			return "", &FetchError{ExternalID: externalID, Err: err}
		}
		metrics.RecordPosterFetch("error")
		return "", err
	}
	metrics.RecordPosterFetch("miss")
	return posterURL, nil
}

func (c *Client) fetch(ctx context.Context, externalID string) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	reqURL := fmt.Sprintf("%s/movie/%s?%s", c.baseURL, url.PathEscape(externalID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &FetchError{ExternalID: externalID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("metadata request failed", zap.String("external_id", externalID), zap.Error(err))
		return "", &FetchError{ExternalID: externalID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &FetchError{
			ExternalID: externalID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(b))),
		}
	}

	var movie movieResponse
	if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
		return "", &FetchError{ExternalID: externalID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if movie.PosterPath == nil || *movie.PosterPath == "" {
		return "", &FetchError{ExternalID: externalID, StatusCode: resp.StatusCode, Err: errMissingPosterPath}
	}
	return JoinImageURL(c.imageBaseURL, *movie.PosterPath), nil
}

// JoinImageURL joins the image base URL and a poster path with exactly one slash.
func JoinImageURL(base, posterPath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(posterPath, "/")
}

// State returns the circuit breaker state name.
func (c *Client) State() string {
	return c.cb.State().String()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
