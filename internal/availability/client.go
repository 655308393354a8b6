package availability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8081"
	defaultTimeout = 15 * time.Second
	maxLoggedBody  = 300
)

// Endpoints names the backend paths and query parameters. Zero fields fall
// back to the clinic backend's conventions.
type Endpoints struct {
	Specialties     string
	Providers       string
	ProviderCatalog string
	Slots           string
	SpecialtyParam  string
	ProviderParam   string
	DateParam       string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Specialties == "" {
		e.Specialties = "/api/especialidades"
	}
	if e.Providers == "" {
		e.Providers = "/api/medicos-por-especialidad"
	}
	if e.ProviderCatalog == "" {
		e.ProviderCatalog = "/api/medicos"
	}
	if e.Slots == "" {
		e.Slots = "/api/horarios-disponibles"
	}
	if e.SpecialtyParam == "" {
		e.SpecialtyParam = "idEspecialidad"
	}
	if e.ProviderParam == "" {
		e.ProviderParam = "idMedico"
	}
	if e.DateParam == "" {
		e.DateParam = "fechaCita"
	}
	return e
}

// HTTPGatewayConfig configures an HTTPGateway.
type HTTPGatewayConfig struct {
	BaseURL      string
	ProviderMode ProviderMode
	SlotMode     SlotMode
	Timeout      time.Duration
	Endpoints    Endpoints
	HTTPClient   *http.Client
}

// HTTPGateway reads the catalog and slot lists from the clinic's REST backend.
type HTTPGateway struct {
	httpClient   *http.Client
	baseURL      string
	providerMode ProviderMode
	slotMode     SlotMode
	endpoints    Endpoints
	logger       *logging.Logger
	tracer       trace.Tracer
}

// NewHTTPGateway constructs a REST-backed Gateway.
func NewHTTPGateway(cfg HTTPGatewayConfig, logger *logging.Logger) *HTTPGateway {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	providerMode := cfg.ProviderMode
	if providerMode != ProviderModeCatalog {
		providerMode = ProviderModeFiltered
	}
	slotMode := cfg.SlotMode
	if slotMode != SlotModeStrict && slotMode != SlotModePrefiltered {
		slotMode = SlotModeFlagged
	}
	return &HTTPGateway{
		httpClient:   client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		providerMode: providerMode,
		slotMode:     slotMode,
		endpoints:    cfg.Endpoints.withDefaults(),
		logger:       logger.Component("availability"),
		tracer:       otel.Tracer("booking.internal.availability.http"),
	}
}

// FetchSpecialties lists the whole specialty catalog.
func (g *HTTPGateway) FetchSpecialties(ctx context.Context) ([]Specialty, error) {
	ctx, span := g.tracer.Start(ctx, "availability.fetch_specialties")
	defer span.End()

	body, err := g.get(ctx, ResourceSpecialties, g.endpoints.Specialties, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	items, err := decodeList[wireSpecialty](body, "especialidades")
	if err != nil {
		err = decodeError(ResourceSpecialties, err)
		span.RecordError(err)
		return nil, err
	}

	out := make([]Specialty, 0, len(items))
	for _, item := range items {
		s, ok := item.toSpecialty()
		if !ok {
			g.logger.Warn("skipping specialty without id or name", "id", string(item.ID))
			continue
		}
		out = append(out, s)
	}
	span.SetAttributes(attribute.Int("availability.count", len(out)))
	return out, nil
}

// FetchProviders lists the providers of one specialty. In catalog mode the
// whole provider list is downloaded and filtered here; in filtered mode the
// backend's answer is filtered again all the same.
func (g *HTTPGateway) FetchProviders(ctx context.Context, specialtyID string) ([]Provider, error) {
	if strings.TrimSpace(specialtyID) == "" {
		return nil, fmt.Errorf("%w: empty specialty id", ErrInvalidArgument)
	}
	ctx, span := g.tracer.Start(ctx, "availability.fetch_providers", trace.WithAttributes(
		attribute.String("availability.specialty_id", specialtyID),
		attribute.String("availability.provider_mode", string(g.providerMode)),
	))
	defer span.End()

	path := g.endpoints.Providers
	query := url.Values{}
	if g.providerMode == ProviderModeCatalog {
		path = g.endpoints.ProviderCatalog
	} else {
		query.Set(g.endpoints.SpecialtyParam, specialtyID)
	}

	body, err := g.get(ctx, ResourceProviders, path, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	items, err := decodeList[wireProvider](body, "medicos")
	if err != nil {
		err = decodeError(ResourceProviders, err)
		span.RecordError(err)
		return nil, err
	}

	providers := make([]Provider, 0, len(items))
	for _, item := range items {
		p, ok := item.toProvider()
		if !ok {
			g.logger.Warn("skipping provider without id or name", "id", string(item.ID))
			continue
		}
		if p.SpecialtyID == "" && g.providerMode == ProviderModeFiltered {
			// The scoped endpoint answered for this specialty only.
			p.SpecialtyID = specialtyID
		}
		providers = append(providers, p)
	}
	out := FilterProviders(providers, specialtyID)
	if dropped := len(providers) - len(out); dropped > 0 {
		g.logger.Debug("dropped providers from other specialties", "specialty_id", specialtyID, "dropped", dropped)
	}
	span.SetAttributes(attribute.Int("availability.count", len(out)))
	return out, nil
}

// FetchSlots lists the available slot times for a provider on date.
func (g *HTTPGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	if strings.TrimSpace(providerID) == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: provider id and date are required", ErrInvalidArgument)
	}
	ctx, span := g.tracer.Start(ctx, "availability.fetch_slots", trace.WithAttributes(
		attribute.String("availability.provider_id", providerID),
		attribute.String("availability.date", date.String()),
	))
	defer span.End()

	query := url.Values{}
	query.Set(g.endpoints.ProviderParam, providerID)
	query.Set(g.endpoints.DateParam, date.String())

	body, err := g.get(ctx, ResourceSlots, g.endpoints.Slots, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	items, err := decodeList[wireSlot](body, "horarios")
	if err != nil {
		err = decodeError(ResourceSlots, err)
		span.RecordError(err)
		return nil, err
	}

	slots := make([]schedule.Slot, 0, len(items))
	for _, item := range items {
		slot, err := item.toSlot(g.slotMode)
		if err != nil {
			g.logger.Warn("skipping slot with unreadable time", "provider_id", providerID, "error", err)
			continue
		}
		slots = append(slots, slot)
	}
	out := schedule.NormalizeSlots(slots)
	span.SetAttributes(attribute.Int("availability.count", len(out)))
	return out, nil
}

func (g *HTTPGateway) get(ctx context.Context, resource, path string, query url.Values) ([]byte, error) {
	endpoint := g.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, networkError(resource, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, networkError(resource, 0, err)
		}
		g.logger.Warn("availability request failed", "resource", resource, "path", path, "error", err)
		return nil, networkError(resource, 0, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(resource, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxLoggedBody {
			msg = msg[:maxLoggedBody]
		}
		g.logger.Warn("availability API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return nil, networkError(resource, resp.StatusCode, errors.New(strings.TrimSpace(msg)))
	}
	return body, nil
}
