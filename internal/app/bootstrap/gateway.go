package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-cascade/internal/availability"
	appconfig "github.com/wolfman30/booking-cascade/internal/config"
	"github.com/wolfman30/booking-cascade/internal/observability/metrics"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// BuildGateway wires the availability stack: the REST client, fetch metrics
// on backend calls, and the shared catalog cache in front.
func BuildGateway(cfg *appconfig.Config, redisClient *redis.Client, m *metrics.CascadeMetrics, logger *logging.Logger) (availability.Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	providerMode := availability.ProviderMode(cfg.CatalogProviderMode)
	switch providerMode {
	case "":
		providerMode = availability.ProviderModeFiltered
	case availability.ProviderModeFiltered, availability.ProviderModeCatalog:
	default:
		return nil, fmt.Errorf("bootstrap: unknown catalog provider mode %q", cfg.CatalogProviderMode)
	}
	slotMode := availability.SlotMode(cfg.CatalogSlotMode)
	switch slotMode {
	case "":
		slotMode = availability.SlotModeFlagged
	case availability.SlotModeFlagged, availability.SlotModeStrict, availability.SlotModePrefiltered:
	default:
		return nil, fmt.Errorf("bootstrap: unknown catalog slot mode %q", cfg.CatalogSlotMode)
	}

	var gw availability.Gateway = availability.NewHTTPGateway(availability.HTTPGatewayConfig{
		BaseURL:      cfg.CatalogBaseURL,
		ProviderMode: providerMode,
		SlotMode:     slotMode,
		Timeout:      cfg.FetchTimeout,
	}, logger)
	if m != nil {
		gw = availability.Instrument(gw, m)
	}
	gw = availability.NewCachedGateway(gw, redisClient, cfg.CatalogCacheTTL, logger).WithTimeout(cfg.FetchTimeout)

	logger.Info("availability gateway ready",
		"base_url", cfg.CatalogBaseURL,
		"provider_mode", providerMode,
		"slot_mode", slotMode,
		"redis_cache", redisClient != nil,
	)
	return gw, nil
}
