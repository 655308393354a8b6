package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-cascade/internal/clock"
	appconfig "github.com/wolfman30/booking-cascade/internal/config"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; catalog cache disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildClock returns the clinic's wall clock.
func BuildClock(cfg *appconfig.Config) (*clock.System, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	zone := strings.TrimSpace(cfg.ClinicTimezone)
	if zone == "" {
		zone = "UTC"
	}
	clk, err := clock.NewSystemInZone(zone)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: clinic timezone: %w", err)
	}
	return clk, nil
}

// ApplyDemoCatalog points the catalog and submit URLs at the seeded backend
// served by this process under /demo.
func ApplyDemoCatalog(cfg *appconfig.Config) {
	if cfg == nil || !cfg.DemoCatalog {
		return
	}
	local := "http://127.0.0.1:" + cfg.Port + "/demo"
	cfg.CatalogBaseURL = local
	if strings.TrimSpace(cfg.SubmitURL) == "" {
		cfg.SubmitURL = local + "/reserva/confirmar"
	}
}
