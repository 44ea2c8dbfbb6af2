package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/middleware/ratelimit"
	"keuangan/internal/middleware/security"
	"keuangan/internal/services"
	appweb "keuangan/web"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr            string
	RateLimitPerMin int
	RequestTimeout  time.Duration
	MaxRestoreBytes int64
	SheetsEnabled   bool
}

// Server serves one ledger.
type Server struct {
	http.Server
	config    Config
	ledger    *services.Ledger
	metrics   *metrics.Metrics
	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	started   time.Time

	mu      sync.Mutex
	pending *stagedRestore

	shutdownOnce sync.Once
}

// stagedRestore is a parsed backup waiting for the user's answer. The token
// ties the answer to the prompt that was shown.
type stagedRestore struct {
	token   string
	restore *services.PendingRestore
}

// NewServer configures routes and templates, returning a ready-to-run server.
// m may be nil.
func NewServer(cfg Config, l *services.Ledger, m *metrics.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.MaxRestoreBytes <= 0 {
		cfg.MaxRestoreBytes = 10 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		config:   cfg,
		ledger:   l,
		metrics:  m,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin}),
		detector: security.NewDetector(),
		logger:   logger.WithComponent(log.ComponentHTTP),
		started:  time.Now(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.onSuspicious))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost, http.MethodDelete))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))

		r.Get("/", s.handleIndex)
		r.Get("/ui/ledger", s.handleLedgerPartial)

		r.Post("/transactions", s.handleCreate)
		r.Delete("/transactions/{id}/delete", s.handleDelete)
		r.Post("/transactions/{id}/delete", s.handleDelete)

		r.Group(func(r chi.Router) {
			r.Use(security.NoStore)
			r.Get("/backup", s.handleBackup)
			r.Get("/export.csv", s.handleExport)
		})
		r.Post("/export/sheets", s.handleExportSheets)

		r.Post("/restore", s.handleRestoreUpload)
		r.Post("/restore/confirm", s.handleRestoreConfirm)
		r.Post("/restore/cancel", s.handleRestoreCancel)

		r.Route("/api", func(r chi.Router) {
			r.Get("/transactions", s.handleAPITransactions)
			r.Get("/summary", s.handleAPISummary)
			r.Get("/chart", s.handleAPIChart)
		})
	})

	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onSuspicious(r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
		"method", r.Method, "path", r.URL.Path, log.FieldClientIP, s.detector.ExtractClientIP(r))
	if s.metrics != nil {
		s.metrics.SuspiciousRequests.Inc()
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path)
	if s.metrics != nil {
		s.metrics.RateLimitHits.Inc()
	}
	ErrorResponse(http.StatusTooManyRequests, "Terlalu banyak permintaan. Coba lagi nanti.").Write(w)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
	}
}

// renderString executes a template into memory so it can travel in a builder.
func (s *Server) renderString(name string, data any) (string, error) {
	if s.templates == nil {
		return "", fmt.Errorf("render %s: templates not loaded", name)
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
