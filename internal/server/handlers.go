package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/catalog"
	"github.com/hyperjump/kinorec/internal/models"
	"github.com/hyperjump/kinorec/internal/recommend"
	"github.com/hyperjump/kinorec/internal/storage"
)

func (s *Server) handleRecommendPost(w http.ResponseWriter, r *http.Request) {
	var query models.RecommendQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.recommend(w, r, &query)
}

func (s *Server) handleRecommendGet(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.RecommendQuery{Title: params.Get("title")}
	if v := params.Get("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		query.K = k
	}
	if v := params.Get("posters"); v != "" {
		posters, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "posters must be a boolean")
			return
		}
		query.Posters = posters
	}
	s.recommend(w, r, &query)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request, query *models.RecommendQuery) {
	s.logger.Debug("recommend request", zap.String("title", query.Title), zap.Int("k", query.K), zap.Bool("posters", query.Posters))
	response, err := s.service.Recommend(r.Context(), query)
	if err != nil {
		s.respondServiceError(w, err, query.Title)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit := 0
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	response, err := s.service.Titles(r.Context(), params.Get("q"), limit)
	if err != nil {
		s.respondServiceError(w, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	c := s.service.Catalog()
	if c == nil {
		s.respondServiceError(w, recommend.ErrNoCatalog, "")
		return
	}
	item, err := c.GetItem(index)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if c := s.service.Catalog(); c != nil {
		resp["items"] = c.Size()
		resp["fingerprint"] = c.Fingerprint()
	} else {
		resp["items"] = 0
	}
	if s.storage != nil {
		posters, err := s.storage.CountPosters(r.Context())
		if err != nil {
			s.logger.Error("status: count posters failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["cached_posters"] = posters
	}
	if s.breaker != nil {
		resp["poster_circuit_breaker"] = s.breaker.State()
	}

	if s.config != nil {
		configInfo := map[string]interface{}{
			"artifact_path":    s.config.Artifact.Path,
			"artifact_format":  s.config.Artifact.Format,
			"artifact_watch":   s.config.Artifact.WatchOrDefault(),
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
			"default_k":        s.config.Recommend.DefaultK,
			"max_k":            s.config.Recommend.MaxK,
			"posters_enabled":  s.config.Metadata.EnabledOrDefault(),
		}
		resp["config"] = configInfo
		usage, err := storage.MeasureDiskUsage(
			s.config.Artifact.Path,
			s.config.Storage.DatabasePath,
			s.config.Storage.BleveIndexPath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = usage.Total()
			resp["disk_usage"] = usage
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondServiceError maps service errors to HTTP statuses. An unknown title gets 404
// with close titles as suggestions.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, title string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, &models.ErrorResponse{
			Error:       err.Error(),
			Suggestions: s.service.Suggest(title),
		})
	case errors.Is(err, models.ErrInvalidQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recommend.ErrNoCatalog):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, &models.ErrorResponse{Error: message})
}
