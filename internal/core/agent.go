package core

import "context"

// Handler consumes events delivered by the bus. The id identifies the
// subscription, so registering the same handler twice is a no-op.
type Handler interface {
	ID() string
	Handle(event Event) error
}

// Ranked is implemented by handlers that hold a senate rank. The bus
// consults it as a delivery tie-break for priority-carrying events.
type Ranked interface {
	Rank() int
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc struct {
	id string
	fn func(Event) error
}

// NewHandlerFunc wraps fn as a Handler registered under id.
func NewHandlerFunc(id string, fn func(Event) error) HandlerFunc {
	return HandlerFunc{id: id, fn: fn}
}

func (h HandlerFunc) ID() string { return h.id }

func (h HandlerFunc) Handle(ev Event) error { return h.fn(ev) }

// Agent defines the minimal behaviour expected from any senate participant.
type Agent interface {
	Handler
	Ranked
	Name() string
	Faction() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
