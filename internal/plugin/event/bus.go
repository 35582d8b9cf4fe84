// Package event provides the process-wide pub/sub bus for plugins.
//
// Every subscription is attributed to an owning plugin so that tearing down
// one plugin removes exactly its own handlers. Dispatch is synchronous and
// runs in subscription order; a panicking handler is recovered and logged
// without aborting dispatch to the remaining handlers.
package event

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler receives the arguments passed to Emit.
type Handler func(args ...any)

// Subscription identifies one (event, owner, handler) registration.
// Go functions are not comparable, so exact-tuple removal is realized by
// handing the caller back this token and removing by token identity.
type Subscription struct {
	Event string
	Owner string

	id      uint64
	handler Handler
}

// Bus is the shared event table.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	nextID atomic.Uint64
	log    *zap.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for recovered handler panics.
func WithLogger(log *zap.Logger) BusOption {
	return func(b *Bus) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBus creates an empty event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs: make(map[string][]*Subscription),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event on behalf of a plugin.
// The returned token removes exactly this registration when passed to
// Unsubscribe. A nil handler returns nil.
func (b *Bus) Subscribe(event, owner string, handler Handler) *Subscription {
	if event == "" || handler == nil {
		return nil
	}

	sub := &Subscription{
		Event:   event,
		Owner:   owner,
		id:      b.nextID.Add(1),
		handler: handler,
	}

	b.mu.Lock()
	b.subs[event] = append(b.subs[event], sub)
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a single subscription. Returns true if it existed.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.Event]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.Event] = append(list[:i], list[i+1:]...)
			if len(b.subs[sub.Event]) == 0 {
				delete(b.subs, sub.Event)
			}
			return true
		}
	}
	return false
}

// Emit invokes all subscribers for the event in subscription order.
// Handlers run outside the bus lock so they may subscribe or unsubscribe;
// a panicking handler does not stop dispatch to the rest.
func (b *Bus) Emit(event string, args ...any) {
	b.mu.RLock()
	list := make([]*Subscription, len(b.subs[event]))
	copy(list, b.subs[event])
	b.mu.RUnlock()

	for _, sub := range list {
		b.dispatch(sub, args)
	}
}

// dispatch calls one handler with panic recovery.
func (b *Bus) dispatch(sub *Subscription, args []any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("event handler panicked",
				zap.String("event", sub.Event),
				zap.String("plugin", sub.Owner),
				zap.Any("panic", r))
		}
	}()
	sub.handler(args...)
}

// RemoveOwner removes every subscription owned by the plugin.
// Returns the number of subscriptions removed.
func (b *Bus) RemoveOwner(owner string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for event, list := range b.subs {
		kept := list[:0]
		for _, s := range list {
			if s.Owner == owner {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(b.subs, event)
		} else {
			b.subs[event] = kept
		}
	}
	return removed
}

// SubscriberCount returns the number of subscriptions for an event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// OwnerCount returns the number of subscriptions held by a plugin.
func (b *Bus) OwnerCount(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, list := range b.subs {
		for _, s := range list {
			if s.Owner == owner {
				count++
			}
		}
	}
	return count
}
