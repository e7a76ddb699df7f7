// Package txmonitor опрашивает статус отправленной транзакции, пока она не
// подтвердится, не упадёт или не кончится бюджет попыток.
package txmonitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ignatzorin/gig-escrow-backend/internal/goroutine"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 30
)

var ErrChainFailed = errors.New("txmonitor: транзакция завершилась ошибкой в сети")

type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	// StateTimedOut означает, что бюджет попыток исчерпан и запись досинхронизируется позже.
	StateTimedOut State = "timed_out"
)

// StatusSource отдаёт статус подписи, через RPC узел или прокси сервера.
type StatusSource interface {
	SignatureStatus(ctx context.Context, signature string) (chain.SignatureStatus, error)
}

type StatusFunc func(ctx context.Context, signature string) (chain.SignatureStatus, error)

func (f StatusFunc) SignatureStatus(ctx context.Context, signature string) (chain.SignatureStatus, error) {
	return f(ctx, signature)
}

// OnConfirmed вызывается один раз, когда подпись достигла нужной глубины.
type OnConfirmed func(ctx context.Context, signature string) error

// Result описывает итог наблюдения. Для confirmed Err содержит ошибку колбэка.
type Result struct {
	Signature string
	State     State
	Attempts  int
	Err       error
}

type Monitor struct {
	source      StatusSource
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	depth       chain.Depth

	// mu управляет циклом, stateMu только состоянием: цикл, который
	// останавливают, должен успеть записать итог.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu sync.Mutex
	gen     uint64
	state   State
}

type Option func(*Monitor)

func WithClock(clk clock.Clock) Option { return func(m *Monitor) { m.clock = clk } }

func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

func WithMaxAttempts(n int) Option { return func(m *Monitor) { m.maxAttempts = n } }

// WithDepth задаёт глубину, после которой вызывается коммит. Должна совпадать с серверной.
func WithDepth(d chain.Depth) Option { return func(m *Monitor) { m.depth = d } }

func New(source StatusSource, opts ...Option) *Monitor {
	m := &Monitor{
		source:      source,
		clock:       clock.New(),
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		depth:       chain.DepthConfirmed,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxAttempts
	}
	return m
}

func (m *Monitor) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Watch начинает наблюдение за подписью и останавливает предыдущее, если оно
// было. Канал получает не больше одного Result и закрывается; после Stop или
// замены новым Watch он закрывается без результата.
// Нельзя вызывать Watch и Stop из onConfirmed.
func (m *Monitor) Watch(ctx context.Context, signature string, onConfirmed OnConfirmed) <-chan Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.stateMu.Lock()
	m.gen++
	m.state = StateWaiting
	gen := m.gen
	m.stateMu.Unlock()

	out := make(chan Result, 1)
	ticker := m.clock.Ticker(m.interval)
	done := m.done

	goroutine.SafeGo(func() {
		defer close(done)
		defer close(out)
		defer ticker.Stop()
		m.run(loopCtx, gen, signature, onConfirmed, ticker, out)
	})
	return out
}

// Stop прекращает опрос. Журнал синхронизации не трогает: запись
// останется в очереди и уйдёт при следующем replay.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	m.stateMu.Lock()
	m.gen++
	m.state = StateIdle
	m.stateMu.Unlock()
}

func (m *Monitor) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Monitor) run(ctx context.Context, gen uint64, sig string, onConfirmed OnConfirmed, ticker *clock.Ticker, out chan<- Result) {
	log := logger.Log.WithField("signature", sig)

	for attempt := 1; ; attempt++ {
		status, err := m.source.SignatureStatus(ctx, sig)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			log.WithError(err).WithField("attempt", attempt).Debug("txmonitor: статус недоступен")
		case status == chain.StatusFailed:
			m.finish(gen, out, Result{Signature: sig, State: StateFailed, Attempts: attempt, Err: ErrChainFailed})
			return
		case status.Satisfies(m.depth):
			var cbErr error
			if onConfirmed != nil {
				cbErr = onConfirmed(ctx, sig)
			}
			m.finish(gen, out, Result{Signature: sig, State: StateConfirmed, Attempts: attempt, Err: cbErr})
			return
		}

		if attempt >= m.maxAttempts {
			log.WithField("attempts", attempt).Info("txmonitor: подтверждение не дождались, синхронизируем позже")
			m.finish(gen, out, Result{Signature: sig, State: StateTimedOut, Attempts: attempt})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finish публикует итог, если цикл всё ещё текущий.
func (m *Monitor) finish(gen uint64, out chan<- Result, res Result) {
	m.stateMu.Lock()
	if m.gen == gen {
		m.state = res.State
	}
	m.stateMu.Unlock()
	out <- res
}
