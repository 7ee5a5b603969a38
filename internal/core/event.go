package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags an event with its place in the debate protocol.
type EventType string

const (
	TypeTopicIntroduced EventType = "topic.introduced"
	TypeDebateStarted   EventType = "debate.started"
	TypeDebateEnded     EventType = "debate.ended"
	TypeSpeakerChange   EventType = "debate.speaker"
	TypeSpeech          EventType = "debate.speech"
	TypeInterjection    EventType = "debate.interjection"
	TypeTopicChanged    EventType = "debate.topic_changed"
	TypeVoteRequested   EventType = "vote.requested"
	TypeVoteCast        EventType = "vote.cast"
	TypeRelationship    EventType = "relationship.changed"

	// TypeUnrecognized is the explicit catch-all for tags outside the
	// protocol vocabulary. Components must never match it implicitly.
	TypeUnrecognized EventType = "unrecognized"
)

// Known reports whether t belongs to the protocol vocabulary.
func (t EventType) Known() bool {
	switch t {
	case TypeTopicIntroduced, TypeDebateStarted, TypeDebateEnded,
		TypeSpeakerChange, TypeSpeech, TypeInterjection, TypeTopicChanged,
		TypeVoteRequested, TypeVoteCast, TypeRelationship:
		return true
	}
	return false
}

// Event represents a message exchanged between senate components.
// Once published it must be treated as immutable; a handler that needs a
// variation derives its own event instead of mutating the payload.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source,omitempty"`
	Target    string                 `json:"target,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Priority  int                    `json:"priority,omitempty"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(t EventType, source string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   make(map[string]interface{}),
	}
}

// PayloadString returns the payload value for key when it is a string.
func (e Event) PayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// PayloadFloat returns the payload value for key as a float64. JSON
// round-trips turn all numbers into float64, so ints are accepted too.
func (e Event) PayloadFloat(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
