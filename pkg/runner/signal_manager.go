package runner

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/topical/internal/logging"
)

// DefaultSettleTimeout is how long Settle waits for a signal that may be racing
// an input error.
const DefaultSettleTimeout = 100 * time.Millisecond

// SignalManager turns interrupt signals into context cancellation for the chat
// loop. After an interrupt was handled it can be re-armed to catch the next one.
type SignalManager struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	signals []os.Signal
	settle  time.Duration
	logger  *slog.Logger
}

// SignalOption configures a SignalManager.
type SignalOption func(*SignalManager)

// WithSignals replaces the watched signals (default SIGINT and SIGTERM).
func WithSignals(sigs ...os.Signal) SignalOption {
	return func(sm *SignalManager) {
		if len(sigs) > 0 {
			sm.signals = sigs
		}
	}
}

// WithSettleTimeout sets how long Settle waits.
func WithSettleTimeout(d time.Duration) SignalOption {
	return func(sm *SignalManager) {
		sm.settle = d
	}
}

// WithSignalLogger sets the logger reporting caught signals.
func WithSignalLogger(logger *slog.Logger) SignalOption {
	return func(sm *SignalManager) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewSignalManager creates a manager that is already listening.
func NewSignalManager(opts ...SignalOption) *SignalManager {
	sm := &SignalManager{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		settle:  DefaultSettleTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	sm.Rearm()
	return sm
}

// Context is cancelled when a watched signal arrives.
func (sm *SignalManager) Context() context.Context {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.ctx
}

// Interrupted reports whether a signal arrived since the last Rearm.
func (sm *SignalManager) Interrupted() bool {
	return sm.Context().Err() != nil
}

// Rearm starts a fresh listener, discarding any signal already caught.
func (sm *SignalManager) Rearm() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(context.Background(), sm.signals...)
}

// Stop releases the listener. Context is cancelled afterwards.
func (sm *SignalManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.cancel != nil {
		sm.cancel()
	}
}

// Settle is called after an input error. On some terminals Ctrl+C closes
// stdin slightly before the signal is delivered, so it waits up to the settle
// timeout for the signal and reports whether one arrived.
func (sm *SignalManager) Settle() bool {
	ctx := sm.Context()
	if ctx.Err() != nil {
		return true
	}
	timer := time.NewTimer(sm.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		sm.logger.Debug("interrupt arrived after input error")
		return true
	case <-timer.C:
		return false
	}
}
