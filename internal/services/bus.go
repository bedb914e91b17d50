package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
)

var ErrTransportUnavailable = errors.New("notification transport unavailable")

// Sink receives encoded events in the order they were published
type Sink interface {
	Deliver(ctx context.Context, room string, message []byte) error
}

type outboxEntry struct {
	room  string
	event string
	data  []byte
}

// Bus is an in-memory outbox in front of a Sink. Publish only enqueues, so a
// slow or broken transport can never hold up the caller; a single goroutine
// drains the queue in order.
type Bus struct {
	sink   Sink
	queue  chan outboxEntry
	log    *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func NewBus(sink Sink, buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		sink:  sink,
		queue: make(chan outboxEntry, buffer),
		log:   logger,
	}
}

// Publish enqueues an event for room. It fails fast with ErrTransportUnavailable
// when the outbox is full or closed.
func (b *Bus) Publish(_ context.Context, room, event string, payload any) error {
	data, err := EncodeMessage(event, payload)
	if err != nil {
		return errors.Wrapf(err, "encode %s", event)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.Wrap(ErrTransportUnavailable, "bus closed")
	}
	select {
	case b.queue <- outboxEntry{room: room, event: event, data: data}:
		return nil
	default:
		return errors.Wrapf(ErrTransportUnavailable, "outbox full, dropped %s for %s", event, room)
	}
}

// Run drains the outbox into the sink until ctx is cancelled
func (b *Bus) Run(ctx context.Context) {
	defer b.close()

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-b.queue:
			if err := b.sink.Deliver(ctx, entry.room, entry.data); err != nil {
				b.log.Warn("event delivery failed",
					slog.String("room", entry.room),
					slog.String("event", entry.event),
					slog.Any("error", err))
			}
		}
	}
}

// Pending reports how many events are waiting to be delivered
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
