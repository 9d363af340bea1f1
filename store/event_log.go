package store

import (
	"context"
	"sync"
	"time"

	"ospi/api/logger"
	"ospi/api/models"
)

// EventWriter persists a batch of events.
type EventWriter interface {
	InsertAnalyticsEvents(ctx context.Context, events []models.AnalyticsEvent) error
}

// EventLogOptions tunes batching. Zero values pick defaults.
type EventLogOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
	// OnFlush observes each batch write; err is nil on success.
	OnFlush func(n int, err error)
}

// EventLog queues events in memory and writes them in batches from one
// background goroutine. Record never blocks: when the queue is full the
// event is dropped.
type EventLog struct {
	writer EventWriter
	opts   EventLogOptions
	log    logger.Logger

	queue chan models.AnalyticsEvent
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewEventLog(writer EventWriter, opts EventLogOptions, log logger.Logger) *EventLog {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	l := &EventLog{
		writer: writer,
		opts:   opts,
		log:    log,
		queue:  make(chan models.AnalyticsEvent, opts.BufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Record queues ev and reports whether it was accepted.
func (l *EventLog) Record(ev models.AnalyticsEvent) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.queue <- ev:
		return true
	default:
		l.log.Warn("Event log queue full, dropping event",
			logger.String("event_type", ev.EventType),
			logger.String("session_id", ev.SessionID),
		)
		return false
	}
}

// Close flushes queued events and stops the writer goroutine.
func (l *EventLog) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}

func (l *EventLog) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.AnalyticsEvent, 0, l.opts.BatchSize)
	for {
		select {
		case ev := <-l.queue:
			batch = append(batch, ev)
			if len(batch) >= l.opts.BatchSize {
				batch = l.flush(batch)
			}
		case <-ticker.C:
			batch = l.flush(batch)
		case <-l.quit:
			for {
				select {
				case ev := <-l.queue:
					batch = append(batch, ev)
				default:
					l.flush(batch)
					return
				}
			}
		}
	}
}

func (l *EventLog) flush(batch []models.AnalyticsEvent) []models.AnalyticsEvent {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.WriteTimeout)
	defer cancel()

	err := l.writer.InsertAnalyticsEvents(ctx, batch)
	if err != nil {
		l.log.Error("Failed to write event batch",
			logger.Int("count", len(batch)),
			logger.Error(err),
		)
	}
	if l.opts.OnFlush != nil {
		l.opts.OnFlush(len(batch), err)
	}
	return batch[:0]
}
