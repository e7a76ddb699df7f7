package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultConfigCacheTTL = 30 * time.Second
	platformConfigKey     = "platform_config"
)

// PlatformConfigCache держит настройки платформы в памяти не дольше ttl.
// Параллельные промахи сливаются в одно чтение из базы.
type PlatformConfigCache struct {
	repo  repository.PlatformConfigRepository
	clock clock.Clock
	ttl   time.Duration
	group singleflight.Group

	mu         sync.RWMutex
	value      entity.PlatformConfig
	expiresAt  time.Time
	loaded     bool
	generation uint64
}

func NewPlatformConfigCache(repo repository.PlatformConfigRepository, clk clock.Clock, ttl time.Duration) *PlatformConfigCache {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = DefaultConfigCacheTTL
	}
	return &PlatformConfigCache{repo: repo, clock: clk, ttl: ttl}
}

// Get возвращает актуальные настройки или значения по умолчанию,
// если строка в базе ещё не создана.
func (c *PlatformConfigCache) Get(ctx context.Context) (entity.PlatformConfig, error) {
	if v, ok := c.fresh(); ok {
		metrics.ConfigCacheReads.WithLabelValues("hit").Inc()
		return v, nil
	}

	v, err, _ := c.group.Do(platformConfigKey, func() (interface{}, error) {
		if v, ok := c.fresh(); ok {
			return v, nil
		}
		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()
		return c.load(ctx, gen)
	})
	if err != nil {
		return entity.PlatformConfig{}, err
	}
	return v.(entity.PlatformConfig), nil
}

func (c *PlatformConfigCache) fresh() (entity.PlatformConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && c.clock.Now().Before(c.expiresAt) {
		return c.value, true
	}
	return entity.PlatformConfig{}, false
}

func (c *PlatformConfigCache) load(ctx context.Context, gen uint64) (entity.PlatformConfig, error) {
	cfg, found, err := c.repo.Get(ctx)
	if err != nil {
		return entity.PlatformConfig{}, err
	}
	if !found {
		cfg = entity.DefaultPlatformConfig()
		metrics.ConfigCacheReads.WithLabelValues("default").Inc()
	} else {
		metrics.ConfigCacheReads.WithLabelValues("load").Inc()
	}

	c.mu.Lock()
	// Invalidate во время чтения: результат мог устареть, в кеш не кладём.
	if gen == c.generation {
		c.value = cfg
		c.expiresAt = c.clock.Now().Add(c.ttl)
		c.loaded = true
	}
	c.mu.Unlock()

	return cfg, nil
}

// Invalidate сбрасывает кеш; следующий Get пойдёт в базу.
func (c *PlatformConfigCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.generation++
	c.mu.Unlock()
	c.group.Forget(platformConfigKey)
}

// Update сохраняет новые настройки и сразу сбрасывает кеш.
func (c *PlatformConfigCache) Update(ctx context.Context, feeBPS int, graceSecs int64, actor uuid.UUID) (entity.PlatformConfig, error) {
	cfg := entity.PlatformConfig{
		FeeBPS:          feeBPS,
		GracePeriodSecs: graceSecs,
		UpdatedAt:       c.clock.Now().UTC(),
		UpdatedBy:       &actor,
	}
	if err := cfg.Validate(); err != nil {
		return entity.PlatformConfig{}, err
	}

	saved, err := c.repo.Upsert(ctx, cfg)
	if err != nil {
		return entity.PlatformConfig{}, err
	}
	c.Invalidate()

	logger.Log.WithFields(logrus.Fields{
		"fee_bps":           saved.FeeBPS,
		"grace_period_secs": saved.GracePeriodSecs,
		"updated_by":        actor,
	}).Info("настройки платформы обновлены")

	return saved, nil
}
