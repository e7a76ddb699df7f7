package expiry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/metrics"
)

type ConfigSource interface {
	Get(ctx context.Context) (entity.PlatformConfig, error)
}

// Manager переводит просроченные задания в expired: по одному при чтении
// и пакетно не чаще, чем разрешает Throttle.
type Manager struct {
	gigs     repository.GigRepository
	config   ConfigSource
	throttle Throttle
	clock    clock.Clock
	events   event.Publisher
}

func NewManager(gigs repository.GigRepository, config ConfigSource, throttle Throttle, clk clock.Clock, events event.Publisher) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Manager{gigs: gigs, config: config, throttle: throttle, clock: clk, events: events}
}

// Now возвращает текущее время по часам менеджера; им же пользуются usecase-ы,
// чтобы проверки в Go и SQL опирались на один момент.
func (m *Manager) Now() time.Time {
	return m.clock.Now().UTC()
}

// ExpireIfDue выполняет ленивую проверку при чтении одного задания. Возвращает
// перечитанное задание, если статус изменился, иначе исходное.
func (m *Manager) ExpireIfDue(ctx context.Context, gig *entity.Gig) (*entity.Gig, error) {
	cfg, err := m.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := m.Now()
	grace := cfg.GracePeriod()

	if !gig.IsExpiredAt(now, grace) {
		return gig, nil
	}

	changed, err := m.gigs.ExpireOne(ctx, gig.ID, now, grace)
	if err != nil {
		return nil, err
	}

	fresh, err := m.gigs.FindByID(ctx, gig.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.GigsExpired.WithLabelValues("lazy").Inc()
		logger.ForGig(gig.ID, string(entity.ActionExpire)).Info("задание истекло при чтении")
		m.events.GigChanged(ctx, event.NewGigChanged(fresh, entity.ActionExpire, "", now))
	}
	return fresh, nil
}

// Sweep запускает пакетную проверку, если пауза прошла.
// ran=false означает, что вызов отсечён ограничителем.
func (m *Manager) Sweep(ctx context.Context) (expired int64, ran bool, err error) {
	allowed, err := m.throttle.Allow(ctx)
	if err != nil {
		metrics.ExpirySweeps.WithLabelValues("failed").Inc()
		return 0, false, err
	}
	if !allowed {
		metrics.ExpirySweeps.WithLabelValues("throttled").Inc()
		return 0, false, nil
	}

	cfg, err := m.config.Get(ctx)
	if err != nil {
		metrics.ExpirySweeps.WithLabelValues("failed").Inc()
		return 0, true, err
	}

	now := m.Now()
	n, err := m.gigs.ExpireDue(ctx, now, cfg.GracePeriod())
	if err != nil {
		metrics.ExpirySweeps.WithLabelValues("failed").Inc()
		return 0, true, err
	}

	metrics.ExpirySweeps.WithLabelValues("ran").Inc()
	if n > 0 {
		metrics.GigsExpired.WithLabelValues("batch").Add(float64(n))
		logger.Log.WithField("expired", n).Info("пакетная проверка сроков завершена")
	}
	return n, true, nil
}
