package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is how often the dwell timer folds elapsed time.
const DefaultTickInterval = time.Second

// DurationTicker periodically calls emit while armed. It is the only
// self-scheduling source of events.
type DurationTicker struct {
	interval time.Duration
	emit     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDurationTicker returns a disarmed ticker. emit must return promptly once
// its context is cancelled.
func NewDurationTicker(interval time.Duration, emit func(ctx context.Context)) *DurationTicker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &DurationTicker{interval: interval, emit: emit}
}

// Arm starts ticking. Arming an armed ticker is a no-op.
func (t *DurationTicker) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(ctx, done)
}

// Disarm stops ticking and waits for the tick goroutine to exit, so no emit
// call starts after Disarm returns.
func (t *DurationTicker) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}

func (t *DurationTicker) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *DurationTicker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.emit(ctx)
		}
	}
}
