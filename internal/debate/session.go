package debate

import (
	"time"

	"go-senate-sim/internal/core"
)

// Interjection records one reaction raised during another senator's
// speech. Disruptive entries ended the speech they targeted.
type Interjection struct {
	Interjector string
	Target      string
	Kind        core.InterjectionKind
	Disruptive  bool
	At          time.Time
}

// Session tracks one topic's in-progress deliberation. It is owned by
// the Manager; callers must not retain it past EndDebate.
type Session struct {
	Topic             string
	Initiator         string
	Participants      []string
	CurrentSpeaker    string
	SpeechStartTime   time.Time
	SpeechesDelivered map[string]int
	Interjections     []Interjection
	Active            bool

	queue []string
}

func newSession(topic, initiator string, participants []string) *Session {
	s := &Session{
		Topic:             topic,
		Initiator:         initiator,
		SpeechesDelivered: make(map[string]int),
		Active:            true,
	}
	s.addParticipant(initiator)
	for _, p := range participants {
		s.addParticipant(p)
	}
	return s
}

func (s *Session) addParticipant(id string) {
	if id == "" || s.HasParticipant(id) {
		return
	}
	s.Participants = append(s.Participants, id)
}

// HasParticipant reports whether id takes part in this session.
func (s *Session) HasParticipant(id string) bool {
	for _, p := range s.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Speaking reports whether a speech is currently in progress.
func (s *Session) Speaking() bool { return s.CurrentSpeaker != "" }

// nextSpeaker pops the next participant from the speaking queue,
// refilling it in registration order when exhausted.
func (s *Session) nextSpeaker() string {
	if len(s.queue) == 0 {
		s.queue = append(s.queue, s.Participants...)
	}
	if len(s.queue) == 0 {
		return ""
	}
	speaker := s.queue[0]
	s.queue = s.queue[1:]
	s.CurrentSpeaker = speaker
	s.SpeechStartTime = time.Now()
	return speaker
}

// clearSpeaker returns the session to the idle sub-state.
func (s *Session) clearSpeaker() {
	s.CurrentSpeaker = ""
	s.SpeechStartTime = time.Time{}
}

func (s *Session) speechCount() int {
	total := 0
	for _, n := range s.SpeechesDelivered {
		total += n
	}
	return total
}

// mostActive returns the participant with the highest completed speech
// count, ties broken by registration order.
func (s *Session) mostActive() string {
	best, bestCount := "", -1
	for _, p := range s.Participants {
		if n := s.SpeechesDelivered[p]; n > bestCount {
			best, bestCount = p, n
		}
	}
	if bestCount <= 0 {
		return ""
	}
	return best
}
