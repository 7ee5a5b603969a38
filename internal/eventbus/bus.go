package eventbus

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"go-senate-sim/internal/core"
)

// DefaultHistoryLimit bounds the event history ring when no explicit
// limit is configured.
const DefaultHistoryLimit = 100

type subscription struct {
	handler  core.Handler
	priority int
	seq      int
}

// MemoryBus delivers events synchronously on the publishing goroutine.
// Handler order is deterministic: higher subscription priority first,
// then (only for events that carry a nonzero priority themselves) the
// handler's senate rank, then registration order. One handler failing
// or panicking never stops delivery to the rest.
type MemoryBus struct {
	mu           sync.Mutex
	subs         map[core.EventType][]subscription
	wildcard     []subscription
	filters      []FilterFunc
	history      []core.Event
	historyLimit int
	seq          int
	logger       *log.Logger
}

// NewMemoryBus creates a bus with the given history limit. A limit of
// zero or less falls back to DefaultHistoryLimit.
func NewMemoryBus(historyLimit int, logger *log.Logger) *MemoryBus {
	if logger == nil {
		logger = log.Default()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &MemoryBus{
		subs:         make(map[core.EventType][]subscription),
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Subscribe registers h for events of type t. Registering the same
// handler id twice for the same type is a no-op.
func (b *MemoryBus) Subscribe(t core.EventType, h core.Handler, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[t] {
		if s.handler.ID() == h.ID() {
			return
		}
	}
	b.seq++
	b.subs[t] = append(b.subs[t], subscription{handler: h, priority: priority, seq: b.seq})
}

// SubscribeToAll registers h for every event type, ordered alongside
// type-specific handlers by the same priority rule.
func (b *MemoryBus) SubscribeToAll(h core.Handler, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.wildcard {
		if s.handler.ID() == h.ID() {
			return
		}
	}
	b.seq++
	b.wildcard = append(b.wildcard, subscription{handler: h, priority: priority, seq: b.seq})
}

// Unsubscribe removes h's registration for t. No-op if absent.
func (b *MemoryBus) Unsubscribe(t core.EventType, h core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = removeByID(b.subs[t], h.ID())
}

// UnsubscribeFromAll removes h's wildcard registration. No-op if absent.
func (b *MemoryBus) UnsubscribeFromAll(h core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = removeByID(b.wildcard, h.ID())
}

func removeByID(subs []subscription, id string) []subscription {
	for i, s := range subs {
		if s.handler.ID() == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// AddFilter installs a predicate consulted before every delivery.
func (b *MemoryBus) AddFilter(f FilterFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters = append(b.filters, f)
}

// Publish delivers event to every matching handler and appends it to
// history. It returns an error only when the event is missing its type
// tag; handler failures are logged and absorbed. Handlers iterate a
// snapshot of the subscriber list, so subscribing or unsubscribing from
// inside a handler does not affect the current delivery pass.
func (b *MemoryBus) Publish(event core.Event) error {
	if event.Type == "" {
		return fmt.Errorf("eventbus: event %s has no type", event.ID)
	}

	b.mu.Lock()
	for _, f := range b.filters {
		if !f(event) {
			b.mu.Unlock()
			b.logger.Printf("eventbus: event %s (%s) rejected by filter", event.ID, event.Type)
			return nil
		}
	}
	merged := make([]subscription, 0, len(b.subs[event.Type])+len(b.wildcard))
	merged = append(merged, b.subs[event.Type]...)
	merged = append(merged, b.wildcard...)
	b.mu.Unlock()

	orderSubscriptions(merged, event.Priority)
	for _, s := range merged {
		b.deliver(s.handler, event)
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if excess := len(b.history) - b.historyLimit; excess > 0 {
		b.history = append(b.history[:0:0], b.history[excess:]...)
	}
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) deliver(h core.Handler, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("eventbus: handler %s panicked on %s: %v", h.ID(), event.Type, r)
		}
	}()
	if err := h.Handle(event); err != nil {
		b.logger.Printf("eventbus: handler %s failed on %s: %v", h.ID(), event.Type, err)
	}
}

func orderSubscriptions(subs []subscription, eventPriority int) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		if eventPriority != 0 {
			ri, rj := rankOf(subs[i].handler), rankOf(subs[j].handler)
			if ri != rj {
				return ri > rj
			}
		}
		return subs[i].seq < subs[j].seq
	})
}

func rankOf(h core.Handler) int {
	if r, ok := h.(core.Ranked); ok {
		return r.Rank()
	}
	return 0
}

// Handlers returns the handlers registered for t, in registration order.
// Wildcard handlers are not included.
func (b *MemoryBus) Handlers(t core.EventType) []core.Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Handler, 0, len(b.subs[t]))
	for _, s := range b.subs[t] {
		out = append(out, s.handler)
	}
	return out
}

// RecentEvents returns up to count events from history, oldest first.
func (b *MemoryBus) RecentEvents(count int) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > len(b.history) {
		count = len(b.history)
	}
	out := make([]core.Event, count)
	copy(out, b.history[len(b.history)-count:])
	return out
}

// ClearHistory discards the retained event history.
func (b *MemoryBus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

var _ Bus = (*MemoryBus)(nil)
