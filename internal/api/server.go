package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/config"
	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/metrics"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 500
	lookupTimeout      = 30 * time.Second
)

// CrawlEngine is the subset of crawler.Engine the API drives.
type CrawlEngine interface {
	Start(startID, endID int64) (string, error)
	Status() crawler.StatusSnapshot
	Lookup(ctx context.Context, id int64) (crawler.LookupResult, error)
}

// DocumentIndex is the read side of the catalog.
type DocumentIndex interface {
	Get(id int64) (crawler.Record, bool)
	Search(text string) []crawler.Record
	Recent(limit int) []crawler.Record
	Count() int
}

// Server wires HTTP handlers to the crawl engine and catalog.
type Server struct {
	router chi.Router
	engine CrawlEngine
	docs   DocumentIndex
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(engine CrawlEngine, docs DocumentIndex, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		docs:   docs,
		logger: logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.startCrawl)
			r.Get("/status", s.crawlStatus)
		})
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.searchDocuments)
			r.Get("/recent", s.recentDocuments)
			r.Route("/{doc_id}", func(r chi.Router) {
				r.Get("/", s.getDocument)
				r.Get("/download", s.downloadDocument)
				r.Post("/lookup", s.lookupDocument)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.engine == nil || s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "documents": s.docs.Count()})
}

type startCrawlRequest struct {
	StartID int64 `json:"start_id"`
	EndID   int64 `json:"end_id"`
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	runID, err := s.engine.Start(req.StartID, req.EndID)
	switch {
	case errors.Is(err, crawler.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  err.Error(),
			"status": s.engine.Status(),
		})
		return
	case errors.Is(err, crawler.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"status": s.engine.Status(),
	})
}

func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.docs.Search(r.URL.Query().Get("search"))
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"showing":   len(docs),
		"total":     s.docs.Count(),
	})
}

func (s *Server) recentDocuments(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}
	docs := s.docs.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"showing":   len(docs),
		"total":     s.docs.Count(),
	})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	rec, found := s.docs.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	rec, found := s.docs.Get(id)
	if !found || rec.SourceURL == "" {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	http.Redirect(w, r, rec.SourceURL, http.StatusFound)
}

func (s *Server) lookupDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()
	res, err := s.engine.Lookup(ctx, id)
	switch {
	case errors.Is(err, crawler.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, crawler.ErrFetch):
		s.logger.Warn("lookup fetch failed", zap.Int64("doc_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.logger.Error("lookup failed", zap.Int64("doc_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "doc_id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "document id must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
