package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ospi/api/logger"
	"ospi/api/models"
)

// ErrTrackerClosed is returned for events sent to a stopped tracker.
var ErrTrackerClosed = errors.New("session tracker is closed")

// AppliedHook observes every event after it has been applied.
type AppliedHook func(sessionID string, ev Event, next models.SessionState)

// Options configures a Tracker.
type Options struct {
	Classifier   PageClassifier
	Sampler      Sampler
	TickInterval time.Duration
	// Now overrides the clock, for tests.
	Now     func() time.Time
	OnApply AppliedHook
	Logger  logger.Logger
}

type request struct {
	event Event
	reply chan models.SessionState
}

// Tracker owns the SessionState of one browsing session. A single goroutine
// applies events in arrival order, so callers never observe a partially
// updated state. The dwell ticker feeds the same queue.
type Tracker struct {
	id      string
	engine  *Engine
	now     func() time.Time
	onApply AppliedHook
	log     logger.Logger
	ticker  *DurationTicker

	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	// state is only touched by the run goroutine.
	state models.SessionState
}

// NewTracker starts a tracker with a freshly sampled, unstarted state.
func NewTracker(id string, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Sampler == nil {
		opts.Sampler = NewEnvironmentSampler("", nil)
	}

	t := &Tracker{
		id:       id,
		engine:   NewEngine(opts.Classifier, opts.Sampler),
		now:      opts.Now,
		onApply:  opts.OnApply,
		log:      opts.Logger.With(logger.String("session_id", id)),
		requests: make(chan request),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	t.state = t.engine.NewState(t.now())
	t.ticker = NewDurationTicker(opts.TickInterval, t.tick)

	go t.run()
	return t
}

func (t *Tracker) ID() string {
	return t.id
}

// Dispatch applies ev and returns a snapshot of the resulting state.
func (t *Tracker) Dispatch(ctx context.Context, ev Event) (models.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionState{}, err
	}
	reply := make(chan models.SessionState, 1)

	select {
	case t.requests <- request{event: ev, reply: reply}:
	case <-t.quit:
		return models.SessionState{}, ErrTrackerClosed
	case <-ctx.Done():
		return models.SessionState{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return models.SessionState{}, ctx.Err()
	}
}

// Snapshot returns an immutable copy of the current state.
func (t *Tracker) Snapshot(ctx context.Context) (models.SessionState, error) {
	return t.Dispatch(ctx, nil)
}

// Close stops the tracker and its ticker. It is safe to call more than once.
func (t *Tracker) Close() {
	t.once.Do(func() { close(t.quit) })
	<-t.stopped
}

func (t *Tracker) run() {
	defer close(t.stopped)
	defer t.ticker.Disarm()

	for {
		select {
		case <-t.quit:
			return
		case req := <-t.requests:
			t.apply(req)
		}
	}
}

func (t *Tracker) apply(req request) {
	if req.event != nil {
		t.state = t.engine.Apply(t.state, req.event, t.now())
		if t.onApply != nil {
			t.onApply(t.id, req.event, t.state)
		}
		if req.event.Kind() != KindUpdateProductDuration {
			t.log.Debug("Session event applied",
				logger.String("event", string(req.event.Kind())),
				logger.Int("page_visits", len(t.state.PageVisits)),
				logger.Float64("page_value", t.state.Features.PageValue),
			)
		}
	}

	if t.state.ActiveProductPageSince != nil {
		t.ticker.Arm()
	} else {
		t.ticker.Disarm()
	}

	if req.reply != nil {
		req.reply <- t.state.Clone()
	}
}

// tick is the ticker's emit function.
func (t *Tracker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	select {
	case t.requests <- request{event: UpdateProductDuration{}}:
	case <-ctx.Done():
	case <-t.quit:
	}
}
