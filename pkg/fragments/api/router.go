package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

// RouterConfig holds what NewRouter needs besides the service
type RouterConfig struct {
	JWTAuth         *jwtauth.JWTAuth
	APIURL          string
	MaxFragmentSize int64
	Version         string
	Logger          *slog.Logger
	Timeout         time.Duration
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// NewRouter mounts the fragment API at /v1/fragments and an
// unauthenticated health check at /healthz.
func NewRouter(service fragments.Service, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		render.JSON(w, r, HealthResponse{Status: "ok", Version: cfg.Version})
	})

	handler := NewFragmentHandler(service, cfg.APIURL, cfg.Logger)
	r.Route("/v1/fragments", func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTAuth)...)
		r.Use(RequestSizeLimitMiddleware(cfg.MaxFragmentSize))
		r.Mount("/", handler.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return r
}
