package session

import (
	"context"
	"math/rand"
	"testing"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/debate"
	"go-senate-sim/internal/eventbus"
	"go-senate-sim/internal/senator"
	"go-senate-sim/internal/textgen"
)

// fixedSource makes every Float64 draw return the same value.
type fixedSource struct{ v float64 }

func (s fixedSource) Int63() int64 { return int64(s.v * (1 << 62) * 2) }
func (s fixedSource) Seed(int64)   {}

type fixture struct {
	bus      *eventbus.MemoryBus
	registry *senator.Registry
	manager  *debate.Manager
	driver   *Driver
}

// Factions are chosen so the Static generator lands one senator on each
// stance for the topic "Grain subsidies".
var testSenators = []struct {
	id      string
	faction string
	rank    int
}{
	{"s1", "optimates", 1},  // support
	{"s2", "patricians", 5}, // oppose
	{"s3", "court", 1},      // neutral
}

func newFixture(t *testing.T, draw float64) *fixture {
	t.Helper()
	bus := eventbus.NewMemoryBus(0, nil)
	registry := senator.NewRegistry()
	manager := debate.NewManager(bus, registry.RankOf, nil)
	manager.Register()
	gen := textgen.Static{}

	for _, sc := range testSenators {
		opts := senator.Options{
			FactionOf: registry.FactionOf,
			Rand:      rand.New(fixedSource{v: draw}),
		}
		registry.Add(senator.New(sc.id, sc.id, sc.faction, sc.rank, bus, gen, nil, opts, nil))
	}
	if err := registry.StartAll(context.Background()); err != nil {
		t.Fatalf("start senators: %v", err)
	}
	return &fixture{
		bus:      bus,
		registry: registry,
		manager:  manager,
		driver:   NewDriver(bus, manager, registry, gen, 0, nil),
	}
}

func TestRunDebateQuietChamber(t *testing.T) {
	// Draws of 0.99 exceed the interjection probability ceiling, so
	// every speech completes undisturbed.
	f := newFixture(t, 0.99)
	sum, err := f.driver.RunDebate(context.Background(), "Grain subsidies", 2)
	if err != nil {
		t.Fatalf("run debate: %v", err)
	}
	if sum.SpeechCount != 6 {
		t.Fatalf("expected 6 speeches over 2 rounds, got %d", sum.SpeechCount)
	}
	if sum.MostActiveSpeaker != "s1" {
		t.Fatalf("expected first-registered senator on tie, got %q", sum.MostActiveSpeaker)
	}
	if sum.Interjections != 0 {
		t.Fatalf("expected a quiet chamber, got %d interjections", sum.Interjections)
	}

	count := f.driver.Tally().Result("Grain subsidies")
	if count.For != 1 || count.Against != 1 || count.Abstain != 1 {
		t.Fatalf("expected 1/1/1 vote split, got %+v", count)
	}
	if _, ok := f.manager.Session("Grain subsidies"); ok {
		t.Fatal("session must be removed from the registry after the debate")
	}
}

func TestRunDebateRowdyChamber(t *testing.T) {
	// Draws of zero make every listener interject on every speech.
	// With ranks 1/5/1 only s2 can disrupt, so exactly its speech
	// completes.
	f := newFixture(t, 0)
	sum, err := f.driver.RunDebate(context.Background(), "Grain subsidies", 1)
	if err != nil {
		t.Fatalf("run debate: %v", err)
	}
	if sum.SpeechCount != 1 {
		t.Fatalf("expected only the senior senator's speech credited, got %d", sum.SpeechCount)
	}
	if sum.MostActiveSpeaker != "s2" {
		t.Fatalf("expected s2 most active, got %q", sum.MostActiveSpeaker)
	}
	if sum.Interjections == 0 {
		t.Fatal("expected recorded interjections")
	}
}

func TestRunDebateRequiresSenators(t *testing.T) {
	bus := eventbus.NewMemoryBus(0, nil)
	registry := senator.NewRegistry()
	manager := debate.NewManager(bus, registry.RankOf, nil)
	manager.Register()
	d := NewDriver(bus, manager, registry, textgen.Static{}, 0, nil)
	if _, err := d.RunDebate(context.Background(), "empty", 1); err == nil {
		t.Fatal("expected error with no senators registered")
	}
}

func TestRunDebateTwiceOnSameTopic(t *testing.T) {
	f := newFixture(t, 0.99)
	if _, err := f.driver.RunDebate(context.Background(), "tribute", 1); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// The first session was removed on end, so the topic can be reopened.
	if _, err := f.driver.RunDebate(context.Background(), "tribute", 1); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestTallyLatestBallotWins(t *testing.T) {
	bus := eventbus.NewMemoryBus(0, nil)
	tally := NewTally(bus)
	cast := func(voter string, v core.Vote) {
		ev := core.NewEvent(core.TypeVoteCast, voter)
		ev.Payload["topic"] = "grain"
		ev.Payload["vote"] = string(v)
		if err := bus.Publish(ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	cast("cato", core.VoteFor)
	cast("cato", core.VoteAgainst)
	cast("caesar", core.VoteAbstain)

	count := tally.Result("grain")
	if count.For != 0 || count.Against != 1 || count.Abstain != 1 {
		t.Fatalf("expected latest ballot to win, got %+v", count)
	}
	votes := tally.Votes("grain")
	if votes["cato"] != core.VoteAgainst {
		t.Fatalf("expected cato's latest vote, got %s", votes["cato"])
	}
}

func TestDebateEventsReachHistory(t *testing.T) {
	f := newFixture(t, 0.99)
	if _, err := f.driver.RunDebate(context.Background(), "Grain subsidies", 1); err != nil {
		t.Fatalf("run debate: %v", err)
	}
	var sawStart, sawEnd, sawVote bool
	for _, ev := range f.bus.RecentEvents(1000) {
		switch ev.Type {
		case core.TypeDebateStarted:
			sawStart = true
		case core.TypeDebateEnded:
			sawEnd = true
		case core.TypeVoteCast:
			sawVote = true
		}
	}
	if !sawStart || !sawEnd || !sawVote {
		t.Fatalf("expected full lifecycle in history: start=%v end=%v vote=%v", sawStart, sawEnd, sawVote)
	}
}
