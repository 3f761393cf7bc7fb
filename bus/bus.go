package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/permgate/logger"
)

// Option configures a Bus.
type Option func(*options)

type options struct {
	log *logger.Logger
}

// WithLogger sets the logger used to report recovered listener panics.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Subscription is a listener registration on a Bus.
type Subscription struct {
	id       uint64
	canceled atomic.Bool
	remove   func(uint64)
}

// Cancel removes the listener. It is idempotent. A Publish that starts after
// Cancel returns never invokes the listener. A Publish already in progress
// skips it unless its invocation has begun; Cancel does not wait for that
// invocation, so it may be called from inside the listener. Listeners whose
// effect must stop exactly at Cancel guard it with their own state.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) && s.remove != nil {
		s.remove(s.id)
	}
}

// IsCanceled reports whether Cancel has been called.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

type listener[T any] struct {
	sub     *Subscription
	onEvent func(T)
}

// Bus broadcasts events of type T to its current listeners.
type Bus[T any] struct {
	mu        sync.Mutex
	listeners map[uint64]listener[T]
	order     []uint64
	nextID    uint64
	closed    bool
	log       *logger.Logger
}

// New creates an empty bus.
func New[T any](opts ...Option) *Bus[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("bus")
	}
	return &Bus[T]{
		listeners: make(map[uint64]listener[T]),
		log:       o.log,
	}
}

// Subscribe registers onEvent. Subscribing to a closed bus returns a
// subscription that is already canceled.
func (b *Bus[T]) Subscribe(onEvent func(T)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, remove: b.remove}
	if b.closed {
		sub.canceled.Store(true)
		return sub
	}
	b.listeners[sub.id] = listener[T]{sub: sub, onEvent: onEvent}
	b.order = append(b.order, sub.id)
	return sub
}

// Publish delivers event to every listener subscribed when Publish starts,
// in subscription order. Listeners canceled mid-delivery are skipped.
func (b *Bus[T]) Publish(event T) {
	b.mu.Lock()
	if b.closed || len(b.order) == 0 {
		b.mu.Unlock()
		return
	}
	snapshot := make([]listener[T], 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.Unlock()

	for _, l := range snapshot {
		if l.sub.IsCanceled() {
			continue
		}
		b.deliver(l, event)
	}
}

// Len returns the number of active listeners.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Close cancels every subscription. Later publishes are no-ops and later
// subscriptions start out canceled.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.listeners[id].sub)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	b.log.Debug("bus closed", logger.Fields(logger.FieldListeners, len(subs)))
}

func (b *Bus[T]) deliver(l listener[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("listener panicked", logger.Fields(
				"subscription", l.sub.id,
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	l.onEvent(event)
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[id]; !ok {
		return
	}
	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}
