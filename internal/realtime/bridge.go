package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bridge turns raw change events into debounced cache invalidations: each
// event restarts the debounce timer, so a burst within one window collapses
// into a single invalidation after the burst goes quiet.
type Bridge struct {
	debounce   time.Duration
	invalidate func()
	logger     *zap.Logger

	mu          sync.Mutex
	timer       *time.Timer
	timerGen    uint64
	unsubscribe func()
	closed      bool
}

// NewBridge subscribes to src and schedules invalidate once the debounce
// window elapses without a newer matching event.
func NewBridge(src Source, filter Filter, debounce time.Duration, invalidate func(), logger *zap.Logger) (*Bridge, error) {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bridge{
		debounce:   debounce,
		invalidate: invalidate,
		logger:     logger,
	}
	unsubscribe, err := src.Subscribe(filter, b.onEvent)
	if err != nil {
		return nil, err
	}
	b.unsubscribe = unsubscribe
	return b, nil
}

func (b *Bridge) onEvent(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timerGen++
	gen := b.timerGen
	b.timer = time.AfterFunc(b.debounce, func() { b.fire(gen) })
}

func (b *Bridge) fire(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.timerGen {
		// A newer event re-armed the debounce while this timer was firing.
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.mu.Unlock()

	b.logger.Debug("debounced invalidation")
	b.invalidate()
}

// Close cancels any pending invalidation and unsubscribes from the source.
// Safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
