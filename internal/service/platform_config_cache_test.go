package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigRepo struct {
	mu      sync.Mutex
	cfg     *entity.PlatformConfig
	loads   int32
	gate    chan struct{}
	failGet error
}

func (f *fakeConfigRepo) Get(ctx context.Context) (entity.PlatformConfig, bool, error) {
	atomic.AddInt32(&f.loads, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.failGet != nil {
		return entity.PlatformConfig{}, false, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg == nil {
		return entity.PlatformConfig{}, false, nil
	}
	return *f.cfg, true, nil
}

func (f *fakeConfigRepo) Upsert(ctx context.Context, cfg entity.PlatformConfig) (entity.PlatformConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = &cfg
	return cfg, nil
}

func TestPlatformConfigCache_DefaultWhenNotSeeded(t *testing.T) {
	repo := &fakeConfigRepo{}
	cache := NewPlatformConfigCache(repo, clock.NewMock(), time.Minute)

	cfg, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.FeeBPS)
	assert.Equal(t, int64(600), cfg.GracePeriodSecs)
}

func TestPlatformConfigCache_TTL(t *testing.T) {
	clk := clock.NewMock()
	repo := &fakeConfigRepo{cfg: &entity.PlatformConfig{FeeBPS: 100, GracePeriodSecs: 60}}
	cache := NewPlatformConfigCache(repo, clk, 30*time.Second)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.NoError(t, err)
	_, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.loads))

	// Изменение в базе в обход кеша видно только после TTL.
	repo.cfg = &entity.PlatformConfig{FeeBPS: 300, GracePeriodSecs: 60}
	clk.Add(29 * time.Second)
	cfg, _ := cache.Get(ctx)
	assert.Equal(t, 100, cfg.FeeBPS)

	clk.Add(2 * time.Second)
	cfg, _ = cache.Get(ctx)
	assert.Equal(t, 300, cfg.FeeBPS)
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.loads))
}

func TestPlatformConfigCache_UpdateInvalidates(t *testing.T) {
	repo := &fakeConfigRepo{cfg: &entity.PlatformConfig{FeeBPS: 100}}
	cache := NewPlatformConfigCache(repo, clock.NewMock(), time.Hour)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.NoError(t, err)

	saved, err := cache.Update(ctx, 400, 120, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 400, saved.FeeBPS)

	cfg, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.FeeBPS)
	assert.Equal(t, int64(120), cfg.GracePeriodSecs)

	_, err = cache.Update(ctx, 20000, 0, uuid.New())
	assert.True(t, apperror.IsValidation(err))
}

func TestPlatformConfigCache_ConcurrentMissesCollapse(t *testing.T) {
	repo := &fakeConfigRepo{cfg: &entity.PlatformConfig{FeeBPS: 250}, gate: make(chan struct{})}
	cache := NewPlatformConfigCache(repo, clock.NewMock(), time.Minute)

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := cache.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 250, cfg.FeeBPS)
		}()
	}

	// ждём, пока первый загрузчик зайдёт в базу
	require.Eventually(t, func() bool { return atomic.LoadInt32(&repo.loads) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.loads))
}

func TestPlatformConfigCache_ErrorNotCached(t *testing.T) {
	repo := &fakeConfigRepo{failGet: errors.New("db down")}
	cache := NewPlatformConfigCache(repo, clock.NewMock(), time.Minute)

	_, err := cache.Get(context.Background())
	assert.Error(t, err)

	repo.failGet = nil
	repo.cfg = &entity.PlatformConfig{FeeBPS: 10}
	cfg, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.FeeBPS)
}
