package session

import (
	"sync"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/eventbus"
)

// Count holds the tallied ballots for one topic.
type Count struct {
	For     int
	Against int
	Abstain int
}

// Tally collects vote-cast events per topic. Each voter's latest ballot
// wins.
type Tally struct {
	mu    sync.Mutex
	votes map[string]map[string]core.Vote
}

// NewTally creates a tally subscribed to vote-cast events on bus.
func NewTally(bus eventbus.Bus) *Tally {
	t := &Tally{votes: make(map[string]map[string]core.Vote)}
	bus.Subscribe(core.TypeVoteCast, t, 0)
	return t
}

func (t *Tally) ID() string { return "vote-tally" }

func (t *Tally) Handle(ev core.Event) error {
	if ev.Type != core.TypeVoteCast {
		return nil
	}
	topic := ev.PayloadString("topic")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.votes[topic] == nil {
		t.votes[topic] = make(map[string]core.Vote)
	}
	t.votes[topic][ev.Source] = core.Vote(ev.PayloadString("vote"))
	return nil
}

// Result returns the counts for topic.
func (t *Tally) Result(topic string) Count {
	t.mu.Lock()
	defer t.mu.Unlock()
	var c Count
	for _, v := range t.votes[topic] {
		switch v {
		case core.VoteFor:
			c.For++
		case core.VoteAgainst:
			c.Against++
		default:
			c.Abstain++
		}
	}
	return c
}

// Votes returns a copy of the per-voter ballots for topic.
func (t *Tally) Votes(topic string) map[string]core.Vote {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]core.Vote, len(t.votes[topic]))
	for voter, v := range t.votes[topic] {
		out[voter] = v
	}
	return out
}

var _ core.Handler = (*Tally)(nil)
