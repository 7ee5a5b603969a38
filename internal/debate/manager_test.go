package debate

import (
	"errors"
	"testing"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/eventbus"
)

func newTestManager(t *testing.T, ranks map[string]int) (*Manager, *eventbus.MemoryBus) {
	t.Helper()
	bus := eventbus.NewMemoryBus(0, nil)
	m := NewManager(bus, func(id string) int { return ranks[id] }, nil)
	m.Register()
	return m, bus
}

func interject(t *testing.T, bus *eventbus.MemoryBus, interjector, speaker, topic string, kind core.InterjectionKind) {
	t.Helper()
	ev := core.NewEvent(core.TypeInterjection, interjector)
	ev.Target = speaker
	ev.Payload["kind"] = string(kind)
	ev.Payload["topic"] = topic
	if err := bus.Publish(ev); err != nil {
		t.Fatalf("publish interjection: %v", err)
	}
}

func speak(t *testing.T, m *Manager, topic string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		speaker, err := m.NextSpeaker(topic)
		if err != nil {
			t.Fatalf("next speaker: %v", err)
		}
		if err := m.PublishSpeech(speaker, topic, "on "+topic, core.StanceNeutral, nil); err != nil {
			t.Fatalf("publish speech: %v", err)
		}
	}
}

func TestAdmissible(t *testing.T) {
	cases := []struct {
		interjector, speaker int
		kind                 core.InterjectionKind
		want                 bool
	}{
		{5, 3, core.InterjectionEmotional, true},
		{5, 3, core.InterjectionAcclamation, true},
		{3, 3, core.InterjectionProcedural, true},
		{3, 3, core.InterjectionObjection, false},
		{2, 3, core.InterjectionEmotional, false},
		{2, 3, core.InterjectionProcedural, false},
	}
	for _, c := range cases {
		if got := Admissible(c.interjector, c.speaker, c.kind); got != c.want {
			t.Fatalf("Admissible(%d, %d, %s) = %v, want %v", c.interjector, c.speaker, c.kind, got, c.want)
		}
	}
}

func TestDuplicateStartIsNoOp(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if err := m.StartDebate("land reform", "cato", []string{"cato", "caesar"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.StartDebate("land reform", "caesar", nil); !errors.Is(err, ErrDebateActive) {
		t.Fatalf("expected ErrDebateActive, got %v", err)
	}
}

func TestEndWithoutSessionIsNoOp(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, err := m.EndDebate("ghost topic"); !errors.Is(err, ErrNoActiveDebate) {
		t.Fatalf("expected ErrNoActiveDebate, got %v", err)
	}
}

func TestInitiatorAlwaysParticipates(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if err := m.StartDebate("tribute", "cato", []string{"caesar"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s, ok := m.Session("tribute")
	if !ok || !s.HasParticipant("cato") {
		t.Fatal("initiator must be in the participant set")
	}
	if len(s.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(s.Participants))
	}
}

func TestDebateStatistics(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if err := m.StartDebate("grain", "Cato", []string{"Cato", "Caesar"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Rotation alternates Cato/Caesar; 5 turns give Cato 3, Caesar 2.
	speak(t, m, "grain", 5)

	sum, err := m.EndDebate("grain")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.SpeechCount != 5 {
		t.Fatalf("expected 5 speeches, got %d", sum.SpeechCount)
	}
	if sum.MostActiveSpeaker != "Cato" {
		t.Fatalf("expected Cato most active, got %q", sum.MostActiveSpeaker)
	}
}

func TestMostActiveTieBreaksByRegistration(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if err := m.StartDebate("ties", "first", []string{"first", "second"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	speak(t, m, "ties", 4) // 2 speeches each
	sum, err := m.EndDebate("ties")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.MostActiveSpeaker != "first" {
		t.Fatalf("expected first-registered participant on tie, got %q", sum.MostActiveSpeaker)
	}
}

func TestInterjectionDisruptsAndEndsSpeech(t *testing.T) {
	ranks := map[string]int{"consul": 5, "quaestor": 2}
	m, bus := newTestManager(t, ranks)
	if err := m.StartDebate("war", "quaestor", []string{"quaestor", "consul"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	speaker, err := m.NextSpeaker("war")
	if err != nil || speaker != "quaestor" {
		t.Fatalf("expected quaestor to speak first, got %q (%v)", speaker, err)
	}

	interject(t, bus, "consul", "quaestor", "war", core.InterjectionObjection)

	s, _ := m.Session("war")
	if len(s.Interjections) != 1 || !s.Interjections[0].Disruptive {
		t.Fatalf("expected one disruptive interjection, got %+v", s.Interjections)
	}
	if s.Speaking() {
		t.Fatal("disruption should clear the current speaker")
	}

	// The disrupted speech arrives after losing the floor: not credited.
	if err := m.PublishSpeech("quaestor", "war", "cut short", core.StanceOppose, nil); err != nil {
		t.Fatalf("publish speech: %v", err)
	}
	sum, err := m.EndDebate("war")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.SpeechCount != 0 {
		t.Fatalf("disrupted speech must not be credited, got %d", sum.SpeechCount)
	}
}

func TestInterjectionWithoutSpeakerIsRecordedNowhere(t *testing.T) {
	m, bus := newTestManager(t, nil)
	if err := m.StartDebate("idle", "cato", []string{"cato"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	interject(t, bus, "caesar", "cato", "idle", core.InterjectionObjection)
	s, _ := m.Session("idle")
	if len(s.Interjections) != 0 {
		t.Fatalf("interjection with no active speaker must be a no-op, got %+v", s.Interjections)
	}
}

func TestChangeTopicPreservesState(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if err := m.StartDebate("old law", "cato", []string{"cato", "caesar"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	speak(t, m, "old law", 2)
	if err := m.ChangeTopic("old law", "new law"); err != nil {
		t.Fatalf("change topic: %v", err)
	}
	if _, ok := m.Session("old law"); ok {
		t.Fatal("old topic should be re-keyed away")
	}
	s, ok := m.Session("new law")
	if !ok {
		t.Fatal("session missing under new topic")
	}
	if s.SpeechesDelivered["cato"] != 1 || s.SpeechesDelivered["caesar"] != 1 {
		t.Fatalf("counts must survive the re-key, got %v", s.SpeechesDelivered)
	}
	sum, err := m.EndDebate("new law")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.SpeechCount != 2 {
		t.Fatalf("expected 2 speeches after re-key, got %d", sum.SpeechCount)
	}
}

// Full scenario: ranks 1, 2, 3; rank-3 speaks; the junior interjections
// are recorded but never disrupt; the summary credits the one speech.
func TestScenarioJuniorInterjectionsDoNotDisrupt(t *testing.T) {
	ranks := map[string]int{"r1": 1, "r2": 2, "r3": 3}
	m, bus := newTestManager(t, ranks)
	if err := m.StartDebate("Grain subsidies", "r3", []string{"r3", "r1", "r2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	speaker, err := m.NextSpeaker("Grain subsidies")
	if err != nil || speaker != "r3" {
		t.Fatalf("expected r3 first, got %q (%v)", speaker, err)
	}

	interject(t, bus, "r1", "r3", "Grain subsidies", core.InterjectionObjection)
	interject(t, bus, "r2", "r3", "Grain subsidies", core.InterjectionProcedural)

	s, _ := m.Session("Grain subsidies")
	if len(s.Interjections) != 2 {
		t.Fatalf("expected both interjections recorded, got %d", len(s.Interjections))
	}
	for _, ij := range s.Interjections {
		if ij.Disruptive {
			t.Fatalf("junior interjection must not disrupt: %+v", ij)
		}
	}
	if !s.Speaking() {
		t.Fatal("r3 should still hold the floor")
	}

	if err := m.PublishSpeech("r3", "Grain subsidies", "on grain", core.StanceSupport, nil); err != nil {
		t.Fatalf("publish speech: %v", err)
	}
	sum, err := m.EndDebate("Grain subsidies")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.SpeechCount != 1 {
		t.Fatalf("expected speechCount 1, got %d", sum.SpeechCount)
	}
	if sum.Interjections != 2 {
		t.Fatalf("expected 2 recorded interjections, got %d", sum.Interjections)
	}
}
