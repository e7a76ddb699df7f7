package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
)

const DefaultUserCacheTTL = time.Minute

// UserCache кеширует пользователей для сборки транзакций: на каждую сборку
// нужны кошельки заказчика и исполнителя. Профили меняет другой сервис,
// поэтому TTL короткий.
type UserCache struct {
	repo  repository.UserRepository
	clock clock.Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[uuid.UUID]*userEntry
}

type userEntry struct {
	user      entity.User
	expiresAt time.Time
}

var _ repository.UserRepository = (*UserCache)(nil)

func NewUserCache(repo repository.UserRepository, clk clock.Clock, ttl time.Duration) *UserCache {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = DefaultUserCacheTTL
	}
	return &UserCache{
		repo:  repo,
		clock: clk,
		ttl:   ttl,
		cache: make(map[uuid.UUID]*userEntry),
	}
}

// FindByID отдаёт копию из кеша или читает из репозитория. Ошибки не кешируются.
func (c *UserCache) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.cache[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		u := entry.user
		return &u, nil
	}

	user, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[id] = &userEntry{user: *user, expiresAt: now.Add(c.ttl)}
	c.purgeLocked(now)
	c.mu.Unlock()

	u := *user
	return &u, nil
}

// Delete убирает пользователя из кеша.
func (c *UserCache) Delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

// purgeLocked удаляет истёкшие записи при записи в кеш вместо фоновой горутины.
func (c *UserCache) purgeLocked(now time.Time) {
	for id, entry := range c.cache {
		if !now.Before(entry.expiresAt) {
			delete(c.cache, id)
		}
	}
}
