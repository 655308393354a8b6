package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/booking-cascade/internal/forms"
	httpmiddleware "github.com/wolfman30/booking-cascade/internal/http/middleware"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	FormsHandler       *forms.Handler
	MetricsHandler     http.Handler
	MetricsToken       string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter

	// PatientAuthSecret verifies optional patient bearer tokens on /forms.
	PatientAuthSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.With(requireMetricsToken(cfg.MetricsToken)).Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.FormsHandler != nil {
		r.Group(func(patient chi.Router) {
			if cfg.RateLimiter != nil {
				patient.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			patient.Use(httpmiddleware.PatientJWT(cfg.PatientAuthSecret, false))
			patient.Mount("/forms", cfg.FormsHandler.Routes())
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
