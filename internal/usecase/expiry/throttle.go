package expiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
)

const DefaultSweepCooldown = 60 * time.Second

// Throttle решает, можно ли запускать пакетную проверку сейчас.
// Allow сам отмечает запуск: два вызова подряд в пределах паузы не пройдут оба.
type Throttle interface {
	Allow(ctx context.Context) (bool, error)
}

// MemoryThrottle ограничивает проверку в пределах одного процесса.
type MemoryThrottle struct {
	mu       sync.Mutex
	clock    clock.Clock
	cooldown time.Duration
	last     time.Time
	ran      bool
}

func NewMemoryThrottle(clk clock.Clock, cooldown time.Duration) *MemoryThrottle {
	if clk == nil {
		clk = clock.New()
	}
	if cooldown <= 0 {
		cooldown = DefaultSweepCooldown
	}
	return &MemoryThrottle{clock: clk, cooldown: cooldown}
}

func (t *MemoryThrottle) Allow(context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.ran && now.Sub(t.last) < t.cooldown {
		return false, nil
	}
	t.last = now
	t.ran = true
	return true, nil
}

// RedisThrottle ограничивает проверку сразу для всех экземпляров сервиса:
// ключ с TTL ставится через SET NX PX.
type RedisThrottle struct {
	client   redis.Cmdable
	key      string
	owner    string
	cooldown time.Duration
}

func NewRedisThrottle(client redis.Cmdable, key, owner string, cooldown time.Duration) *RedisThrottle {
	if cooldown <= 0 {
		cooldown = DefaultSweepCooldown
	}
	return &RedisThrottle{client: client, key: key, owner: owner, cooldown: cooldown}
}

func (t *RedisThrottle) Allow(ctx context.Context) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key, t.owner, t.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("expiry: redis throttle: %w", err)
	}
	return ok, nil
}
