package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

// Logger описывает то, что нужно обработчику паники от логгера.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler перехватывает панику в горутинах и пишет её в лог.
type RecoveryHandler struct {
	logger Logger
}

func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.handlePanic()
		fn()
	}()
}

func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.handlePanic()
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) handlePanic() {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine: %v\n%s", r, debug.Stack())
	}
}

// globalLogger обращается к logger.Log при каждом вызове:
// logger.Init подменяет экземпляр после старта.
type globalLogger struct{}

func (globalLogger) Errorf(format string, args ...interface{}) {
	logger.Log.Errorf(format, args...)
}

var DefaultRecoveryHandler = NewRecoveryHandler(globalLogger{})

func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
