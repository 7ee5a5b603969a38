package debate

import (
	"errors"
	"log"
	"sort"
	"sync"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/eventbus"
)

// ManagerID is the source id the manager stamps on its own events.
const ManagerID = "debate-manager"

var (
	// ErrDebateActive signals a StartDebate for a topic already underway.
	ErrDebateActive = errors.New("debate already active for topic")
	// ErrNoActiveDebate signals an operation against a missing session.
	ErrNoActiveDebate = errors.New("no active debate for topic")
	// ErrNoSpeaker signals NextSpeaker on a session with no participants.
	ErrNoSpeaker = errors.New("no speaker available")
)

// RankLookup resolves a senator id to its senate rank. Unknown ids
// resolve to zero.
type RankLookup func(id string) int

// Admissible reports whether an interjection may disrupt the current
// speaker: the interjector outranks the speaker, or ranks are equal and
// the interjection is procedural. Everything else is recorded only.
func Admissible(interjectorRank, speakerRank int, kind core.InterjectionKind) bool {
	if interjectorRank > speakerRank {
		return true
	}
	return interjectorRank == speakerRank && kind == core.InterjectionProcedural
}

// Summary reports the statistics published when a debate ends.
type Summary struct {
	Topic             string
	SpeechCount       int
	MostActiveSpeaker string
	Interjections     int
	Participants      int
}

// Manager owns the per-topic session registry and enforces the debate
// protocol. It subscribes to speech and interjection events and exposes
// an imperative API that itself emits events. Illegal transitions are
// logged and returned as sentinel errors, never fatal to the bus.
type Manager struct {
	bus    eventbus.Bus
	rankOf RankLookup
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	record   []core.Event
}

// NewManager creates a manager bound to bus. rankOf may be nil, in
// which case every senator ranks zero.
func NewManager(bus eventbus.Bus, rankOf RankLookup, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if rankOf == nil {
		rankOf = func(string) int { return 0 }
	}
	return &Manager{
		bus:      bus,
		rankOf:   rankOf,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) ID() string { return ManagerID }

// Register subscribes the manager to the events it reacts to. Speech
// completion runs at low priority so senators see the speech, and may
// interject, while the speaker still holds the floor.
func (m *Manager) Register() {
	m.bus.Subscribe(core.TypeInterjection, m, 0)
	m.bus.Subscribe(core.TypeSpeech, m, -10)
}

// Handle dispatches bus events to the session registry.
func (m *Manager) Handle(ev core.Event) error {
	switch ev.Type {
	case core.TypeSpeech:
		m.completeSpeech(ev)
	case core.TypeInterjection:
		m.handleInterjection(ev)
	}
	return nil
}

// StartDebate opens a session for topic. A second start for an active
// topic is a logged no-op returning ErrDebateActive.
func (m *Manager) StartDebate(topic, initiator string, participants []string) error {
	m.mu.Lock()
	if s, ok := m.sessions[topic]; ok && s.Active {
		m.mu.Unlock()
		m.logger.Printf("debate: start ignored, %q already active", topic)
		return ErrDebateActive
	}
	s := newSession(topic, initiator, participants)
	m.sessions[topic] = s
	count := len(s.Participants)
	m.mu.Unlock()

	ev := core.NewEvent(core.TypeDebateStarted, ManagerID)
	ev.Payload["topic"] = topic
	ev.Payload["initiator"] = initiator
	ev.Payload["participants"] = count
	return m.bus.Publish(ev)
}

// NextSpeaker gives the floor to the next participant in rotation and
// publishes a speaker-change event.
func (m *Manager) NextSpeaker(topic string) (string, error) {
	m.mu.Lock()
	s, ok := m.sessions[topic]
	if !ok || !s.Active {
		m.mu.Unlock()
		m.logger.Printf("debate: next speaker ignored, %q not active", topic)
		return "", ErrNoActiveDebate
	}
	speaker := s.nextSpeaker()
	m.mu.Unlock()
	if speaker == "" {
		m.logger.Printf("debate: no speakers registered for %q", topic)
		return "", ErrNoSpeaker
	}

	ev := core.NewEvent(core.TypeSpeakerChange, ManagerID)
	ev.Payload["topic"] = topic
	ev.Payload["speaker"] = speaker
	if err := m.bus.Publish(ev); err != nil {
		return "", err
	}
	return speaker, nil
}

// PublishSpeech emits a speech event on behalf of speaker and appends
// it to the debate record.
func (m *Manager) PublishSpeech(speaker, topic, content string, stance core.Stance, keyPoints []string) error {
	ev := core.NewEvent(core.TypeSpeech, speaker)
	ev.Payload["topic"] = topic
	ev.Payload["content"] = content
	ev.Payload["stance"] = stance.String()
	ev.Payload["key_points"] = keyPoints

	m.mu.Lock()
	m.record = append(m.record, ev)
	m.mu.Unlock()
	return m.bus.Publish(ev)
}

// completeSpeech credits a finished speech to its speaker and returns
// the session to the idle sub-state. A speech whose source no longer
// holds the floor (disrupted, or never granted it) is not credited.
func (m *Manager) completeSpeech(ev core.Event) {
	topic := ev.PayloadString("topic")
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[topic]
	if !ok || !s.Active {
		m.logger.Printf("debate: speech for inactive topic %q ignored", topic)
		return
	}
	if s.CurrentSpeaker != ev.Source {
		m.logger.Printf("debate: %s spoke on %q without the floor", ev.Source, topic)
		return
	}
	s.SpeechesDelivered[ev.Source]++
	s.clearSpeaker()
}

// handleInterjection applies the admissibility rule to an interjection
// aimed at the current speaker. Interjecting with no active speaker is
// a logged no-op.
func (m *Manager) handleInterjection(ev core.Event) {
	kind := core.InterjectionKind(ev.PayloadString("kind"))
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessionForSpeaker(ev.PayloadString("topic"), ev.Target)
	if s == nil {
		m.logger.Printf("debate: interjection by %s ignored, %s does not hold the floor", ev.Source, ev.Target)
		return
	}
	allowed := Admissible(m.rankOf(ev.Source), m.rankOf(ev.Target), kind)
	s.Interjections = append(s.Interjections, Interjection{
		Interjector: ev.Source,
		Target:      ev.Target,
		Kind:        kind,
		Disruptive:  allowed,
		At:          ev.Timestamp,
	})
	if allowed {
		m.logger.Printf("debate: %s disrupts %s on %q (%s)", ev.Source, ev.Target, s.Topic, kind)
		s.clearSpeaker()
	}
}

func (m *Manager) sessionForSpeaker(topic, speaker string) *Session {
	if topic != "" {
		if s, ok := m.sessions[topic]; ok && s.Active && s.CurrentSpeaker == speaker {
			return s
		}
		return nil
	}
	topics := make([]string, 0, len(m.sessions))
	for t := range m.sessions {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		if s := m.sessions[t]; s.Active && s.CurrentSpeaker == speaker {
			return s
		}
	}
	return nil
}

// EndDebate terminates the session for topic, publishes its summary
// statistics and removes it from the registry. Ending a topic with no
// active session is a logged no-op returning ErrNoActiveDebate.
func (m *Manager) EndDebate(topic string) (Summary, error) {
	m.mu.Lock()
	s, ok := m.sessions[topic]
	if !ok || !s.Active {
		m.mu.Unlock()
		m.logger.Printf("debate: end ignored, %q not active", topic)
		return Summary{}, ErrNoActiveDebate
	}
	s.Active = false
	s.clearSpeaker()
	delete(m.sessions, topic)
	sum := Summary{
		Topic:             topic,
		SpeechCount:       s.speechCount(),
		MostActiveSpeaker: s.mostActive(),
		Interjections:     len(s.Interjections),
		Participants:      len(s.Participants),
	}
	m.mu.Unlock()

	ev := core.NewEvent(core.TypeDebateEnded, ManagerID)
	ev.Payload["topic"] = topic
	ev.Payload["speech_count"] = sum.SpeechCount
	ev.Payload["most_active_speaker"] = sum.MostActiveSpeaker
	ev.Payload["interjections"] = sum.Interjections
	if err := m.bus.Publish(ev); err != nil {
		return sum, err
	}
	return sum, nil
}

// ChangeTopic re-keys the active session from oldTopic to newTopic,
// preserving its accumulated state.
func (m *Manager) ChangeTopic(oldTopic, newTopic string) error {
	m.mu.Lock()
	s, ok := m.sessions[oldTopic]
	if !ok || !s.Active {
		m.mu.Unlock()
		m.logger.Printf("debate: topic change ignored, %q not active", oldTopic)
		return ErrNoActiveDebate
	}
	if other, exists := m.sessions[newTopic]; exists && other.Active {
		m.mu.Unlock()
		m.logger.Printf("debate: topic change ignored, %q already active", newTopic)
		return ErrDebateActive
	}
	delete(m.sessions, oldTopic)
	s.Topic = newTopic
	m.sessions[newTopic] = s
	m.mu.Unlock()

	ev := core.NewEvent(core.TypeTopicChanged, ManagerID)
	ev.Payload["old_topic"] = oldTopic
	ev.Payload["topic"] = newTopic
	return m.bus.Publish(ev)
}

// Session returns the live session for topic, if active. The manager
// retains ownership.
func (m *Manager) Session(topic string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[topic]
	return s, ok
}

// Record returns a copy of every speech published through the manager.
func (m *Manager) Record() []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Event, len(m.record))
	copy(out, m.record)
	return out
}

var _ core.Handler = (*Manager)(nil)
