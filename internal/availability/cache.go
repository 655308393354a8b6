package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultSharedTimeout = 30 * time.Second
	cacheKeyPrefix       = "catalog"
)

// CachedGateway fronts another Gateway with a shared redis cache for the
// specialty and provider catalogs. Slot lists are never cached. Concurrent
// misses for the same key collapse into one upstream call. The shared call
// does not inherit any caller's cancellation, so one caller giving up never
// fails the others waiting on the same key.
type CachedGateway struct {
	next    Gateway
	redis   *redis.Client
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	logger *logging.Logger
	tracer trace.Tracer
}

// NewCachedGateway wraps next. A nil redis client keeps only the
// request-collapsing behaviour.
func NewCachedGateway(next Gateway, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedGateway {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedGateway{
		next:    next,
		redis:   client,
		ttl:     ttl,
		timeout: defaultSharedTimeout,
		logger:  logger.Component("availability.cache"),
		tracer:  otel.Tracer("booking.internal.availability.cache"),
	}
}

// WithTimeout bounds each shared upstream call. Non-positive values keep the default.
func (c *CachedGateway) WithTimeout(d time.Duration) *CachedGateway {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// shared runs load once per key across concurrent callers. load gets a
// context detached from the caller's cancellation and bounded by c.timeout;
// each caller stops waiting when its own ctx is done.
func (c *CachedGateway) shared(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(detached, c.timeout)
		defer cancel()
		return load(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchSpecialties returns the cached catalog or loads it from next.
func (c *CachedGateway) FetchSpecialties(ctx context.Context) ([]Specialty, error) {
	key := specialtiesKey()
	v, err := c.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		var cached []Specialty
		if c.load(ctx, key, &cached) {
			return cached, nil
		}
		fresh, err := c.next.FetchSpecialties(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneList(v.([]Specialty)), nil
}

// FetchProviders returns the cached provider list for a specialty or loads it from next.
func (c *CachedGateway) FetchProviders(ctx context.Context, specialtyID string) ([]Provider, error) {
	key := providersKey(specialtyID)
	v, err := c.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		var cached []Provider
		if c.load(ctx, key, &cached) {
			return FilterProviders(cached, specialtyID), nil
		}
		fresh, err := c.next.FetchProviders(ctx, specialtyID)
		if err != nil {
			return nil, err
		}
		fresh = FilterProviders(fresh, specialtyID)
		c.store(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneList(v.([]Provider)), nil
}

// FetchSlots always goes to next; availability changes too fast to cache.
func (c *CachedGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	return c.next.FetchSlots(ctx, providerID, date)
}

// Invalidate drops every cached catalog entry.
func (c *CachedGateway) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "availability.cache_invalidate")
	defer span.End()

	iter := c.redis.Scan(ctx, 0, cacheKeyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("availability: scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("availability: delete cache keys: %w", err)
	}
	span.SetAttributes(attribute.Int("availability.cache.keys", len(keys)))
	return nil
}

func (c *CachedGateway) load(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil {
		return false
	}
	ctx, span := c.tracer.Start(ctx, "availability.cache_load", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		span.RecordError(err)
		c.logger.Warn("catalog cache entry unreadable", "key", key, "error", err)
		return false
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return true
}

func (c *CachedGateway) store(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}
	ctx, span := c.tracer.Start(ctx, "availability.cache_store", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

func specialtiesKey() string {
	return fmt.Sprintf("%s:specialties", cacheKeyPrefix)
}

func providersKey(specialtyID string) string {
	return fmt.Sprintf("%s:providers:%s", cacheKeyPrefix, specialtyID)
}

func cloneList[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
