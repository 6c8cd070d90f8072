package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/resolve-ai/internal/application/analysis"
	domai "github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	domain "github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/middleware"
)

// Analyzer is the use case behind POST /api/analyze.
type Analyzer interface {
	Analyze(ctx context.Context, cmd appanalysis.AnalyzeCommand) (*repair.Analysis, error)
}

type Options struct {
	StaticDir       string
	BodyLimitBytes  int64
	AnalysisTimeout time.Duration
	Limiter         *middleware.RateLimiter
	Checkers        map[string]middleware.HealthChecker
	Logger          *zap.Logger
}

type Router struct {
	analyzer Analyzer
	scans    domain.Repository
	opts     Options
	log      *zap.Logger
}

func NewRouter(analyzer Analyzer, scans domain.Repository, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.BodyLimitBytes <= 0 {
		opts.BodyLimitBytes = 50 << 20
	}
	r := &Router{analyzer: analyzer, scans: scans, opts: opts, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.DeviceHeader},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.With(
			middleware.RateLimitMiddleware(opts.Limiter),
			bodyLimit(opts.BodyLimitBytes),
		).Post("/analyze", r.wrap(r.handleAnalyze))

		rt.Group(func(g chi.Router) {
			g.Use(middleware.RequireDevice)
			g.Get("/scans", r.wrap(r.handleListScans))
			g.With(bodyLimit(opts.BodyLimitBytes)).Post("/scans", r.wrap(r.handleSaveScan))
			g.Delete("/scans/{id}", r.wrap(r.handleDeleteScan))
		})
	})

	mux.NotFound(r.handleSPA)
	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is returned by handlers for client mistakes.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &br):
			writeJSON(w, http.StatusBadRequest, errorBody{br.msg})
		case errors.As(err, &maxErr):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{"request body too large"})
		case errors.Is(err, domai.ErrEmptyMedia):
			writeJSON(w, http.StatusBadRequest, errorBody{"No media items provided"})
		case errors.Is(err, domai.ErrUnsupportedMedia):
			writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		case errors.Is(err, domai.ErrNotConfigured):
			writeJSON(w, http.StatusServiceUnavailable, errorBody{domai.ErrNotConfigured.Error()})
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, errorBody{"ai quota exceeded"})
		default:
			r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			msg := err.Error()
			if msg == "" {
				msg = "Internal Server Error"
			}
			writeJSON(w, http.StatusInternalServerError, errorBody{msg})
		}
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	MediaItems []MediaPart `json:"mediaItems"`
	UserPrompt string      `json:"userPrompt"`
	SkillLevel string      `json:"skillLevel"`
}

type MediaPart struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// POST /api/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body AnalyzeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest{"invalid request body"}
	}
	if len(body.MediaItems) == 0 {
		return domai.ErrEmptyMedia
	}
	if r.analyzer == nil {
		return domai.ErrNotConfigured
	}

	media := make([]repair.MediaItem, 0, len(body.MediaItems))
	for i, m := range body.MediaItems {
		if err := middleware.ValidateMediaMIME(m.MIMEType); err != nil {
			return badRequest{err.Error()}
		}
		if m.Data == "" {
			return badRequest{"media item has no data"}
		}
		media = append(media, repair.MediaItem{
			ID:       strconv.Itoa(i),
			Data:     m.Data,
			MIMEType: m.MIMEType,
			Kind:     repair.KindForMIME(m.MIMEType),
		})
	}

	ctx := req.Context()
	if r.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.AnalysisTimeout)
		defer cancel()
	}

	done := middleware.AnalysisStarted()
	result, err := r.analyzer.Analyze(ctx, appanalysis.AnalyzeCommand{
		Media:      media,
		Query:      middleware.SanitizeString(body.UserPrompt),
		SkillLevel: repair.ParseSkillLevel(body.SkillLevel),
	})
	done(err, err == nil && result.IsHighDanger())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// GET /api/scans
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	list, err := r.scans.ListByDevice(req.Context(), middleware.GetDeviceFromContext(req.Context()))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.StoredScan{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /api/scans
func (r *Router) handleSaveScan(w http.ResponseWriter, req *http.Request) error {
	var scan domain.StoredScan
	if err := json.NewDecoder(req.Body).Decode(&scan); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest{"invalid scan body"}
	}
	if err := middleware.ValidateScanID(string(scan.ID)); err != nil {
		return badRequest{err.Error()}
	}
	if _, err := repair.Normalize(&scan.Analysis); err != nil {
		return badRequest{err.Error()}
	}
	for _, m := range scan.Media {
		if err := m.Validate(); err != nil {
			return badRequest{err.Error()}
		}
	}
	scan.DeviceID = middleware.GetDeviceFromContext(req.Context())
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if err := r.scans.Insert(req.Context(), &scan); err != nil {
		return err
	}
	middleware.IncrementScansSaved()
	return writeJSON(w, http.StatusCreated, map[string]string{"id": string(scan.ID)})
}

// DELETE /api/scans/{id}
func (r *Router) handleDeleteScan(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest{err.Error()}
	}
	if err := r.scans.Delete(req.Context(), middleware.GetDeviceFromContext(req.Context()), domain.ScanID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleSPA serves static assets and falls back to index.html for client routes.
func (r *Router) handleSPA(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		writeJSON(w, http.StatusNotFound, errorBody{"not found"})
		return
	}
	dir := r.opts.StaticDir
	if dir == "" {
		writeJSON(w, http.StatusNotFound, errorBody{"not found"})
		return
	}
	clean := path.Clean("/" + req.URL.Path)
	if strings.HasPrefix(clean, "/api/") {
		writeJSON(w, http.StatusNotFound, errorBody{"not found"})
		return
	}
	p := filepath.Join(dir, filepath.FromSlash(clean))
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		http.ServeFile(w, req, p)
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{"not found"})
		return
	}
	http.ServeFile(w, req, index)
}
