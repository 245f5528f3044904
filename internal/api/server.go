package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/articles"
	"github.com/tndd/datadoggo-v3-rss/internal/content"
	"github.com/tndd/datadoggo-v3-rss/internal/feed"
	"github.com/tndd/datadoggo-v3-rss/internal/metrics"
	"github.com/tndd/datadoggo-v3-rss/internal/webhook"
)

// Error codes returned in the JSON error body.
const (
	codeInvalidLimit      = "invalid_limit"
	codePageTokenNotFound = "page_token_not_found"
	codeArticleTooLarge   = "article_too_large"
	codeInvalidJSON       = "invalid_json"
	codeInternalError     = "internal_error"
)

// RssRunner ingests the configured feed list and reports a run summary.
type RssRunner interface {
	Run(ctx context.Context, sourcesPath string) (*feed.Summary, error)
}

// ContentRunner fetches article bodies for pending queue entries.
type ContentRunner interface {
	Run(ctx context.Context, limit int) (*content.Summary, error)
}

// ArticlePager serves read windows over the stored articles.
type ArticlePager interface {
	Page(ctx context.Context, limit int, pageToken string) (*articles.Page, error)
}

// Notifier delivers completion events after pipeline runs.
type Notifier interface {
	NotifyFetchRss(ctx context.Context, source string, summary any)
	NotifyFetchContent(ctx context.Context, source string, summary any)
}

// Server wires HTTP handlers to the pipeline components.
type Server struct {
	router      chi.Router
	ingestor    RssRunner
	fetcher     ContentRunner
	pager       ArticlePager
	notifier    Notifier
	sourcesPath string
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	ingestor RssRunner,
	fetcher ContentRunner,
	pager ArticlePager,
	notifier Notifier,
	sourcesPath string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingestor:    ingestor,
		fetcher:     fetcher,
		pager:       pager,
		notifier:    notifier,
		sourcesPath: sourcesPath,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.listArticles)
		r.Post("/fetch-rss", s.fetchRss)
		r.Post("/fetch-content", s.fetchContent)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	limit := articles.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, codeInvalidLimit, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := s.pager.Page(r.Context(), limit, r.URL.Query().Get("page_token"))
	if err != nil {
		switch {
		case errors.Is(err, articles.ErrInvalidLimit):
			s.writeError(w, http.StatusBadRequest, codeInvalidLimit, "limit must be a positive integer")
		case errors.Is(err, articles.ErrCursorNotFound):
			s.writeError(w, http.StatusBadRequest, codePageTokenNotFound, "page token does not match any article")
		case errors.Is(err, articles.ErrRowTooLarge):
			s.writeError(w, http.StatusRequestEntityTooLarge, codeArticleTooLarge, "article exceeds the response size limit")
		default:
			s.logger.Error("article page failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, codeInternalError, "internal server error")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) fetchRss(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ingestor.Run(r.Context(), s.sourcesPath)
	if err != nil {
		s.logger.Error("rss ingestion failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, codeInternalError, "rss ingestion failed")
		return
	}
	s.notifier.NotifyFetchRss(r.Context(), webhook.SourceAPI, summary)
	s.writeJSON(w, http.StatusOK, summary)
}

type fetchContentRequest struct {
	Limit *int `json:"limit"`
}

func (s *Server) fetchContent(w http.ResponseWriter, r *http.Request) {
	limit := content.DefaultLimit
	if r.Body != nil && r.ContentLength != 0 {
		var req fetchContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
			return
		}
		if req.Limit != nil {
			limit = *req.Limit
		}
	}

	summary, err := s.fetcher.Run(r.Context(), limit)
	if err != nil {
		if errors.Is(err, content.ErrInvalidLimit) {
			s.writeError(w, http.StatusBadRequest, codeInvalidLimit, "limit must be a positive integer")
			return
		}
		s.logger.Error("content fetch failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, codeInternalError, "content fetch failed")
		return
	}
	s.notifier.NotifyFetchContent(r.Context(), webhook.SourceAPI, summary)
	s.writeJSON(w, http.StatusOK, summary)
}

func parsePositiveInt(raw string) (int, error) {
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errors.New("not a positive integer")
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return 0, errors.New("out of range")
		}
	}
	if n == 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, codeInternalError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Code: code, Message: msg})
}
