package eventbus

import "go-senate-sim/internal/core"

// FilterFunc vets events before delivery. Returning false drops the
// event entirely; dropped events are not recorded in history.
type FilterFunc func(core.Event) bool

// Bus defines publish/subscribe semantics for debate events.
type Bus interface {
	Subscribe(t core.EventType, h core.Handler, priority int)
	SubscribeToAll(h core.Handler, priority int)
	Unsubscribe(t core.EventType, h core.Handler)
	UnsubscribeFromAll(h core.Handler)
	Publish(event core.Event) error
	AddFilter(f FilterFunc)
	Handlers(t core.EventType) []core.Handler
	RecentEvents(count int) []core.Event
	ClearHistory()
}
