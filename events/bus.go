package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/instafit/logging"
)

// eventBus implements Bus with a buffered channel and backpressure. A single
// dispatcher goroutine calls handlers, so every subscriber sees events in
// publish order.
type eventBus struct {
	subscribers map[string][]subscriberEntry
	mu          sync.RWMutex
	ch          chan eventEnvelope
	closed      atomic.Bool
	logger      logging.Logger
	nextID      atomic.Uint64
	done        chan struct{} // signals dispatcher goroutine to stop
	stopped     chan struct{} // closed when the dispatcher has returned
}

type eventEnvelope struct {
	ctx   context.Context
	event Event
}

type subscriberEntry struct {
	id      uint64
	handler Handler
}

// subscription implements Subscription.
type subscription struct {
	bus   *eventBus
	topic string
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		subs := s.bus.subscribers[s.topic]
		for i, entry := range subs {
			if entry.id == s.id {
				s.bus.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	})
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int, logger logging.Logger) Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}

	bus := &eventBus{
		subscribers: make(map[string][]subscriberEntry),
		ch:          make(chan eventEnvelope, bufferSize),
		logger:      logger.Named("events"),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go bus.dispatch()
	return bus
}

func (b *eventBus) dispatch() {
	defer close(b.stopped)

	for {
		select {
		case env := <-b.ch:
			b.fanOut(env)
		case <-b.done:
			// Drain remaining events in channel
			for {
				select {
				case env := <-b.ch:
					b.fanOut(env)
				default:
					return
				}
			}
		}
	}
}

func (b *eventBus) fanOut(env eventEnvelope) {
	b.mu.RLock()
	subs := append([]subscriberEntry{}, b.subscribers[env.event.Name]...)
	subs = append(subs, b.subscribers[Wildcard]...)
	b.mu.RUnlock()

	for _, entry := range subs {
		if err := b.call(env, entry.handler); err != nil {
			b.logger.Warn("event handler error",
				zap.String("event", env.event.Name),
				zap.Uint64("run_seq", env.event.Seq),
				zap.Error(err))
		}
	}
}

func (b *eventBus) call(env eventEnvelope, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(env.ctx, env.event)
}

// Publish sends an event. Blocks until buffer has space or ctx expires.
func (b *eventBus) Publish(ctx context.Context, event Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	env := eventEnvelope{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case b.ch <- env:
		return nil
	default:
		// Buffer full -- block with backpressure
		select {
		case b.ch <- env:
			return nil
		case <-ctx.Done():
			return ErrPublishTimeout
		case <-b.stopped:
			return ErrBusClosed
		}
	}
}

// Subscribe registers a handler for a topic.
func (b *eventBus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{
		id:      id,
		handler: handler,
	})

	return &subscription{bus: b, topic: topic, id: id}
}

// Close stops accepting new events, drains pending, and waits for in-flight handlers.
func (b *eventBus) Close() error {
	if b.closed.Swap(true) {
		return nil // already closed
	}

	close(b.done) // signal dispatcher to drain and stop
	<-b.stopped
	return nil
}
