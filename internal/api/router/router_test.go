package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/booking-cascade/internal/availability"
	"github.com/wolfman30/booking-cascade/internal/forms"
	httpmiddleware "github.com/wolfman30/booking-cascade/internal/http/middleware"
	"github.com/wolfman30/booking-cascade/internal/observability/metrics"
	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

type emptyGateway struct{}

func (emptyGateway) FetchSpecialties(ctx context.Context) ([]availability.Specialty, error) {
	return []availability.Specialty{{ID: "1", Name: "Cardiologia"}}, nil
}

func (emptyGateway) FetchProviders(ctx context.Context, specialtyID string) ([]availability.Provider, error) {
	return nil, nil
}

func (emptyGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	manager := forms.NewManager(forms.ManagerConfig{
		Gateway: emptyGateway{},
		Metrics: metrics.NewCascadeMetrics(reg),
	}, logger)
	t.Cleanup(manager.Shutdown)

	cfg := &Config{
		Logger:         logger,
		FormsHandler:   forms.NewHandler(manager, forms.HandlerConfig{}, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterCreatesForm(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/forms?wait=true", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	var view forms.FormView
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode form: %v", err)
	}
	if view.ID == "" {
		t.Fatalf("expected a form id")
	}
	if len(view.State.Specialty.Options) != 1 {
		t.Errorf("expected one specialty option, got %d", len(view.State.Specialty.Options))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected X-Request-ID header")
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/forms", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "booking_forms_active_sessions") {
		t.Fatalf("expected session gauge to be exported")
	}
}

func TestRouterMetricsTokenRequired(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.MetricsToken = "scrape" })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Metrics-Token", "scrape")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestRouterRateLimitsForms(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(0.001, 1)
	t.Cleanup(limiter.Stop)
	router := newTestRouter(t, func(cfg *Config) { cfg.RateLimiter = limiter })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/forms/unknown", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusNotFound {
		t.Errorf("expected first request to reach the form host, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected second request to be limited, got %d", codes[1])
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", rr.Code)
	}
}

func TestRouterRejectsBadPatientToken(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.PatientAuthSecret = "secret" })

	req := httptest.NewRequest(http.MethodPost, "/forms", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
