package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/keyword"
	"github.com/hyperjump/kinorec/internal/metrics"
	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/internal/poster"
)

// DefaultTitleSearchLimit caps title search results when the caller gives no limit.
const DefaultTitleSearchLimit = 10

// ErrNoCatalog is returned when no catalog has been loaded into the holder.
var ErrNoCatalog = errors.New("catalog not loaded")

const errPostersDisabled = "poster lookup disabled"

// Service is the entry point used by the HTTP API and the CLI. It ranks over the
// current catalog snapshot and decorates results with posters.
type Service struct {
	holder   *catalog.Holder
	resolver *poster.Resolver
	titles   keyword.TitleIndex
	spell    *keyword.SpellChecker
	cfg      config.RecommendConfig
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPosterResolver enables poster lookup. Without it, requests for posters get placeholders.
func WithPosterResolver(r *poster.Resolver) ServiceOption {
	return func(s *Service) { s.resolver = r }
}

// WithTitleIndex enables full-text title search. spell may be nil.
func WithTitleIndex(idx keyword.TitleIndex, spell *keyword.SpellChecker) ServiceOption {
	return func(s *Service) {
		s.titles = idx
		s.spell = spell
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service over holder.
func NewService(holder *catalog.Holder, cfg *config.RecommendConfig, opts ...ServiceOption) *Service {
	s := &Service{holder: holder, logger: zap.NewNop()}
	if cfg != nil {
		s.cfg = *cfg
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the current catalog snapshot, or nil before the first load.
func (s *Service) Catalog() *catalog.Catalog {
	return s.holder.Load()
}

// Recommend validates q, ranks the current snapshot, and resolves posters when q.Posters is set.
// Unknown titles, invalid queries, and corrupt rows are returned as errors; poster failures
// are reported per item and never fail the request.
func (s *Service) Recommend(ctx context.Context, q *models.RecommendQuery) (*models.RecommendResponse, error) {
	start := time.Now()
	if err := q.Validate(s.cfg.DefaultK, s.cfg.MaxK); err != nil {
		metrics.RecordRecommend(outcome(err), time.Since(start))
		return nil, err
	}
	c := s.holder.Load()
	if c == nil {
		metrics.RecordRecommend(outcome(ErrNoCatalog), time.Since(start))
		return nil, ErrNoCatalog
	}

	recs, err := New(c).Recommend(q.Title, q.K)
	if err != nil {
		metrics.RecordRecommend(outcome(err), time.Since(start))
		if errors.Is(err, catalog.ErrDataIntegrity) {
			s.logger.Error("similarity data is corrupt", zap.String("title", q.Title), zap.Error(err))
		}
		return nil, err
	}

	items := make([]*models.RecommendedItem, len(recs))
	for i := range recs {
		items[i] = &models.RecommendedItem{Recommendation: recs[i]}
	}
	if q.Posters {
		s.attachPosters(ctx, items)
	}
	metrics.RecordRecommend("ok", time.Since(start))

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	s.logger.Debug("recommend",
		zap.String("request_id", requestID),
		zap.String("title", q.Title),
		zap.Int("k", q.K),
		zap.Int("results", len(items)),
	)
	return &models.RecommendResponse{
		RequestID:       requestID,
		Query:           q.Title,
		K:               q.K,
		Recommendations: items,
		QueryTime:       time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) attachPosters(ctx context.Context, items []*models.RecommendedItem) {
	if s.resolver == nil {
		for _, it := range items {
			it.Placeholder = true
			it.PosterError = errPostersDisabled
		}
		return
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Item.ExternalID
	}
	for i, r := range s.resolver.Resolve(ctx, ids) {
		if r.Err != nil {
			items[i].Placeholder = true
			items[i].PosterError = r.Err.Error()
			continue
		}
		items[i].PosterURL = r.URL
	}
}

// Suggest returns catalog titles close to title, for "did you mean" hints.
func (s *Service) Suggest(title string) []string {
	c := s.holder.Load()
	if c == nil {
		return nil
	}
	limit := s.cfg.SuggestionsLimit
	if limit <= 0 {
		limit = models.DefaultK
	}
	return keyword.SuggestTitles(c.Titles(), title, limit)
}

// Titles lists catalog titles in catalog order when query is blank, otherwise searches them.
// A non-positive limit lists every title, or DefaultTitleSearchLimit matches for a search.
// A search that matches nothing is retried with the spelling-corrected query, then fuzzily.
func (s *Service) Titles(ctx context.Context, query string, limit int) (*models.TitlesResponse, error) {
	c := s.holder.Load()
	if c == nil {
		return nil, ErrNoCatalog
	}
	query = strings.TrimSpace(query)
	resp := &models.TitlesResponse{Query: query, Matches: make([]*models.TitleMatch, 0)}

	if query == "" {
		items := c.Items()
		if limit > 0 && limit < len(items) {
			items = items[:limit]
		}
		for _, it := range items {
			resp.Matches = append(resp.Matches, &models.TitleMatch{Item: it})
		}
		resp.Total = len(resp.Matches)
		return resp, nil
	}

	if limit <= 0 {
		limit = DefaultTitleSearchLimit
	}
	if s.titles == nil {
		resp.Matches = scanTitles(c, query, limit)
		resp.Total = len(resp.Matches)
		return resp, nil
	}

	hits, err := s.titles.Search(ctx, query, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	if len(hits) == 0 && s.spell != nil {
		if corrected := s.spell.GetSuggestedQuery(query); corrected != query {
			if hits, err = s.titles.Search(ctx, corrected, limit, nil); err != nil {
				return nil, fmt.Errorf("title search: %w", err)
			}
			if len(hits) > 0 {
				resp.CorrectedQuery = corrected
			}
		}
	}
	if len(hits) == 0 {
		if hits, err = s.titles.Search(ctx, query, limit, &keyword.SearchOptions{FuzzyEnabled: true}); err != nil {
			return nil, fmt.Errorf("title search: %w", err)
		}
	}

	for _, h := range hits {
		// The index may briefly lag a reload; skip positions the snapshot does not have.
		item, err := c.GetItem(h.Index)
		if err != nil {
			continue
		}
		resp.Matches = append(resp.Matches, &models.TitleMatch{Item: item, Score: h.Score})
	}
	resp.Total = len(resp.Matches)
	return resp, nil
}

// scanTitles is the case-insensitive substring search used without a title index.
func scanTitles(c *catalog.Catalog, query string, limit int) []*models.TitleMatch {
	q := strings.ToLower(query)
	out := make([]*models.TitleMatch, 0)
	for _, it := range c.Items() {
		if strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, &models.TitleMatch{Item: it, Score: 1})
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// Reload publishes c as the current snapshot and re-indexes titles. In-flight requests
// keep ranking over the snapshot they started with.
func (s *Service) Reload(ctx context.Context, c *catalog.Catalog) error {
	s.holder.Store(c)
	metrics.RecordCatalogLoad(nil, c.Size())
	if s.titles == nil {
		return nil
	}
	if err := s.titles.IndexCatalog(ctx, c); err != nil {
		return fmt.Errorf("index titles: %w", err)
	}
	if s.spell != nil {
		s.spell.Invalidate()
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, catalog.ErrDataIntegrity), errors.Is(err, catalog.ErrIndexOutOfRange):
		return "integrity"
	default:
		return "error"
	}
}
