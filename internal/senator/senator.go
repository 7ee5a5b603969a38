package senator

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/eventbus"
	"go-senate-sim/internal/memory"
	"go-senate-sim/internal/textgen"
)

// NeutralVotePolicy decides what happens when a vote is requested and
// the senator's stance is still neutral or unformed.
type NeutralVotePolicy string

const (
	// AbstainOnNeutral maps a neutral or unset stance straight to abstain.
	AbstainOnNeutral NeutralVotePolicy = "abstain"
	// ResolveOnNeutral re-queries the generator for a forced binary choice.
	ResolveOnNeutral NeutralVotePolicy = "resolve"
)

const (
	interjectionBase = 0.15
	interjectionMin  = 0.05
	interjectionMax  = 0.7
)

// Options carries per-senator tunables. The zero value is usable.
type Options struct {
	NeutralVotePolicy NeutralVotePolicy
	// FactionOf resolves another senator's faction for the interjection
	// alignment term. Unknown ids count as a different faction.
	FactionOf func(id string) string
	// Rand drives the probabilistic decisions. Nil seeds from the clock.
	Rand *rand.Rand
}

// Senator is an autonomous participant: it subscribes to a fixed set of
// event types, keeps stance and relationship state, and reacts by
// publishing speeches, interjections and votes. Its state is owned
// exclusively by itself; other components request changes via events.
type Senator struct {
	id      string
	name    string
	faction string
	rank    int

	bus    eventbus.Bus
	gen    textgen.Generator
	memory *memory.Store
	opts   Options
	logger *log.Logger

	mu            sync.Mutex
	currentTopic  string
	stance        core.Stance
	reasoning     string
	relationships map[string]float64
	processing    map[string]struct{}
	processed     int
}

// New creates a senator. A nil memory store gets a fresh one; a nil
// logger falls back to log.Default().
func New(id, name, faction string, rank int, bus eventbus.Bus, gen textgen.Generator, mem *memory.Store, opts Options, logger *log.Logger) *Senator {
	if logger == nil {
		logger = log.Default()
	}
	if mem == nil {
		mem = memory.NewStore()
	}
	if opts.NeutralVotePolicy == "" {
		opts.NeutralVotePolicy = AbstainOnNeutral
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Senator{
		id:            id,
		name:          name,
		faction:       faction,
		rank:          rank,
		bus:           bus,
		gen:           gen,
		memory:        mem,
		opts:          opts,
		logger:        logger,
		relationships: make(map[string]float64),
		processing:    make(map[string]struct{}),
	}
}

func (s *Senator) ID() string      { return s.id }
func (s *Senator) Name() string    { return s.name }
func (s *Senator) Faction() string { return s.faction }
func (s *Senator) Rank() int       { return s.rank }

// Memory exposes the senator's event memory for the persistence layer.
func (s *Senator) Memory() *memory.Store { return s.memory }

var subscribedTypes = []core.EventType{
	core.TypeTopicIntroduced,
	core.TypeSpeech,
	core.TypeInterjection,
	core.TypeVoteRequested,
	core.TypeRelationship,
	core.TypeDebateEnded,
}

// Start subscribes the senator to its event types.
func (s *Senator) Start(ctx context.Context) error {
	for _, t := range subscribedTypes {
		s.bus.Subscribe(t, s, 0)
	}
	return nil
}

// Stop removes the senator's subscriptions.
func (s *Senator) Stop(ctx context.Context) error {
	for _, t := range subscribedTypes {
		s.bus.Unsubscribe(t, s)
	}
	return nil
}

// Handle processes one bus event. Events the senator authored itself,
// or is already in the middle of processing, are short-circuited.
func (s *Senator) Handle(ev core.Event) error {
	s.mu.Lock()
	if _, busy := s.processing[ev.ID]; busy || ev.Source == s.id {
		s.mu.Unlock()
		return nil
	}
	s.processing[ev.ID] = struct{}{}
	s.processed++
	s.mu.Unlock()
	// The guard must clear even if a dispatch below panics, or the id
	// would block forever.
	defer func() {
		s.mu.Lock()
		delete(s.processing, ev.ID)
		s.mu.Unlock()
	}()

	s.memory.AddEvent(ev, importanceFor(ev.Type))

	switch ev.Type {
	case core.TypeTopicIntroduced:
		s.onTopicIntroduced(ev)
	case core.TypeSpeech:
		s.onSpeech(ev)
	case core.TypeInterjection:
		s.onInterjection(ev)
	case core.TypeVoteRequested:
		s.onVoteRequested(ev)
	case core.TypeRelationship:
		s.onRelationshipChanged(ev)
	case core.TypeDebateEnded:
		s.onDebateEnded(ev)
	}
	return nil
}

func importanceFor(t core.EventType) float64 {
	switch t {
	case core.TypeVoteCast, core.TypeVoteRequested:
		return 0.8
	case core.TypeSpeech:
		return 0.6
	case core.TypeInterjection:
		return 0.5
	case core.TypeDebateStarted, core.TypeDebateEnded, core.TypeTopicIntroduced:
		return 0.4
	}
	return 0.3
}

func (s *Senator) profile() textgen.Profile {
	return textgen.Profile{ID: s.id, Name: s.name, Faction: s.faction, Rank: s.rank}
}

// onTopicIntroduced decides the senator's stance for the new topic.
// The stance is cached for the remainder of the topic.
func (s *Senator) onTopicIntroduced(ev core.Event) {
	topic := ev.PayloadString("topic")
	s.mu.Lock()
	if topic == s.currentTopic && s.stance != core.StanceUnset {
		s.mu.Unlock()
		return
	}
	s.currentTopic = topic
	s.stance = core.StanceUnset
	s.mu.Unlock()

	stance, reasoning, err := s.gen.DecideStance(context.Background(), s.profile(), topic)
	if err != nil {
		s.logger.Printf("senator %s: stance decision failed: %v", s.id, err)
		stance, reasoning = core.StanceNeutral, "no position reached"
	}
	s.mu.Lock()
	s.stance = stance
	s.reasoning = reasoning
	s.mu.Unlock()
}

// onSpeech adjusts the relationship toward the speaker and decides
// whether to interject.
func (s *Senator) onSpeech(ev core.Event) {
	speaker := ev.Source
	speakerStance := core.ParseStance(ev.PayloadString("stance"))

	s.mu.Lock()
	myStance := s.stance
	s.mu.Unlock()
	if myStance.Decided() && speakerStance.Decided() {
		if myStance == speakerStance {
			s.AdjustRelationship(speaker, 0.1)
		} else {
			s.AdjustRelationship(speaker, -0.1)
		}
	}

	s.maybeInterject(speaker, ev.PayloadString("topic"))
}

func (s *Senator) maybeInterject(speaker, topic string) {
	rel := s.Relationship(speaker)
	sameFaction := false
	if s.opts.FactionOf != nil {
		sameFaction = s.opts.FactionOf(speaker) == s.faction
	}
	align := 0.1
	if !sameFaction {
		align = -0.1
	}
	if rel < 0 {
		align = -align
	}
	p := interjectionBase + 0.3*math.Abs(rel) + align
	if p < interjectionMin {
		p = interjectionMin
	}
	if p > interjectionMax {
		p = interjectionMax
	}

	s.mu.Lock()
	draw := s.opts.Rand.Float64()
	s.mu.Unlock()
	if draw >= p {
		return
	}

	kind := s.pickKind(rel)
	content, err := s.gen.ComposeInterjection(context.Background(), s.profile(), kind, speaker)
	if err != nil {
		s.logger.Printf("senator %s: interjection generation failed: %v", s.id, err)
		content = s.name + " murmurs."
	}
	out := core.NewEvent(core.TypeInterjection, s.id)
	out.Target = speaker
	out.Payload["kind"] = string(kind)
	out.Payload["content"] = content
	out.Payload["topic"] = topic
	if err := s.bus.Publish(out); err != nil {
		s.logger.Printf("senator %s: interjection publish failed: %v", s.id, err)
	}
}

// pickKind draws an interjection kind weighted by the relationship
// toward the speaker: strongly positive leans acclamation, strongly
// negative leans objection, otherwise near-uniform.
func (s *Senator) pickKind(rel float64) core.InterjectionKind {
	kinds := [4]core.InterjectionKind{
		core.InterjectionAcclamation,
		core.InterjectionObjection,
		core.InterjectionProcedural,
		core.InterjectionEmotional,
	}
	var weights [4]float64
	switch {
	case rel > 0.3:
		weights = [4]float64{0.7, 0.05, 0.15, 0.1}
	case rel < -0.3:
		weights = [4]float64{0.05, 0.7, 0.1, 0.15}
	default:
		weights = [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	s.mu.Lock()
	draw := s.opts.Rand.Float64()
	s.mu.Unlock()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if draw < acc {
			return kinds[i]
		}
	}
	return kinds[len(kinds)-1]
}

// onInterjection reacts to interjections aimed at this senator.
func (s *Senator) onInterjection(ev core.Event) {
	if ev.Target != s.id {
		return
	}
	switch core.InterjectionKind(ev.PayloadString("kind")) {
	case core.InterjectionAcclamation:
		s.AdjustRelationship(ev.Source, 0.1)
	case core.InterjectionObjection, core.InterjectionEmotional:
		s.AdjustRelationship(ev.Source, -0.1)
	}
}

// onVoteRequested casts a vote from the cached stance, applying the
// configured neutral-vote policy.
func (s *Senator) onVoteRequested(ev core.Event) {
	topic := ev.PayloadString("topic")
	s.mu.Lock()
	stance := s.stance
	reasoning := s.reasoning
	s.mu.Unlock()

	var vote core.Vote
	switch stance {
	case core.StanceSupport:
		vote = core.VoteFor
	case core.StanceOppose:
		vote = core.VoteAgainst
	default:
		if s.opts.NeutralVotePolicy == ResolveOnNeutral {
			v, r, err := s.gen.ResolveVote(context.Background(), s.profile(), topic)
			if err != nil {
				s.logger.Printf("senator %s: vote resolution failed: %v", s.id, err)
				v, r = core.VoteAbstain, "the senator could not be moved to decide"
			}
			vote, reasoning = v, r
		} else {
			vote = core.VoteAbstain
		}
	}

	out := core.NewEvent(core.TypeVoteCast, s.id)
	out.Payload["topic"] = topic
	out.Payload["vote"] = string(vote)
	out.Payload["reasoning"] = reasoning
	if err := s.bus.Publish(out); err != nil {
		s.logger.Printf("senator %s: vote publish failed: %v", s.id, err)
	}
}

// onRelationshipChanged applies an externally requested adjustment.
// Only events aimed at this senator are honored.
func (s *Senator) onRelationshipChanged(ev core.Event) {
	if ev.Target != s.id {
		return
	}
	other := ev.PayloadString("other")
	if other == "" {
		return
	}
	s.AdjustRelationship(other, ev.PayloadFloat("delta"))
}

// onDebateEnded resets the per-topic stance. Relationships persist.
func (s *Senator) onDebateEnded(ev core.Event) {
	s.mu.Lock()
	s.currentTopic = ""
	s.stance = core.StanceUnset
	s.reasoning = ""
	s.mu.Unlock()
}

// AdjustRelationship shifts the score toward other by delta, clamped
// to [-1, 1].
func (s *Senator) AdjustRelationship(other string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.relationships[other] + delta
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	s.relationships[other] = v
}

// Relationship returns the score toward other, zero when unknown.
func (s *Senator) Relationship(other string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relationships[other]
}

// Stance returns the senator's current stance.
func (s *Senator) Stance() core.Stance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stance
}

// ProcessedEvents counts events that made it past the reentrancy and
// self-feedback guard.
func (s *Senator) ProcessedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

var _ core.Agent = (*Senator)(nil)
