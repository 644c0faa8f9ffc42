package events

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives published events
type Handler func(Event)

// Bus dispatches events to handlers registered for their kind. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind]map[int]Handler
	all      map[int]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind]map[int]Handler),
		all:      make(map[int]Handler),
	}
}

// Subscribe registers h for events of kind
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.handlers[kind][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[kind], id)
	}
}

// SubscribeAll registers h for every kind
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.all[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers e. A panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers[e.Kind()])+len(b.all))
	targets := make(map[int]Handler, cap(ids))
	for id, h := range b.handlers[e.Kind()] {
		ids = append(ids, id)
		targets[id] = h
	}
	for id, h := range b.all {
		ids = append(ids, id)
		targets[id] = h
	}
	b.mu.RUnlock()

	sort.Ints(ids)
	for _, id := range ids {
		deliver(targets[id], e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", string(e.Kind())).Msg("event handler panicked")
		}
	}()
	h(e)
}
