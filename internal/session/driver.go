package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go-senate-sim/internal/core"
	"go-senate-sim/internal/debate"
	"go-senate-sim/internal/eventbus"
	"go-senate-sim/internal/senator"
	"go-senate-sim/internal/textgen"
)

// DriverID is the source id the driver stamps on lifecycle events.
const DriverID = "session-driver"

// Driver runs debates end to end on behalf of the session layer: it
// introduces the topic, paces the rounds, requests votes and closes the
// session. Speech drafting for a round happens concurrently, but every
// draft is joined before anything is published, so bus delivery stays
// strictly sequential.
type Driver struct {
	bus      eventbus.Bus
	manager  *debate.Manager
	registry *senator.Registry
	gen      textgen.Generator
	tally    *Tally
	pacing   time.Duration
	logger   *log.Logger
}

// NewDriver wires a driver and its vote tally to the bus.
func NewDriver(bus eventbus.Bus, manager *debate.Manager, registry *senator.Registry, gen textgen.Generator, pacing time.Duration, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		bus:      bus,
		manager:  manager,
		registry: registry,
		gen:      gen,
		tally:    NewTally(bus),
		pacing:   pacing,
		logger:   logger,
	}
}

// Tally exposes the driver's vote collector.
func (d *Driver) Tally() *Tally { return d.tally }

type draft struct {
	speaker   string
	content   string
	keyPoints []string
	stance    core.Stance
	err       error
}

// stanceHolder is satisfied by agents that expose their current stance.
type stanceHolder interface {
	Stance() core.Stance
}

// RunDebate conducts a full single-topic debate: topic introduction,
// the given number of speaking rounds, a vote and the closing summary.
func (d *Driver) RunDebate(ctx context.Context, topic string, rounds int) (debate.Summary, error) {
	ids := d.registry.IDs()
	if len(ids) == 0 {
		return debate.Summary{}, errors.New("session: no senators registered")
	}
	if rounds <= 0 {
		rounds = 1
	}

	intro := core.NewEvent(core.TypeTopicIntroduced, DriverID)
	intro.Payload["topic"] = topic
	if err := d.bus.Publish(intro); err != nil {
		return debate.Summary{}, err
	}

	if err := d.manager.StartDebate(topic, ids[0], ids); err != nil {
		return debate.Summary{}, fmt.Errorf("session: %w", err)
	}

	for r := 0; r < rounds; r++ {
		drafts := d.draftRound(ctx, topic, ids)
		for range ids {
			speaker, err := d.manager.NextSpeaker(topic)
			if err != nil {
				d.logger.Printf("session: round %d: %v", r, err)
				break
			}
			dr, ok := drafts[speaker]
			if !ok {
				d.logger.Printf("session: no draft for %s, skipping", speaker)
				continue
			}
			if err := d.manager.PublishSpeech(speaker, topic, dr.content, dr.stance, dr.keyPoints); err != nil {
				d.logger.Printf("session: speech publish failed for %s: %v", speaker, err)
			}
			if err := d.pace(ctx); err != nil {
				return debate.Summary{}, err
			}
		}
	}

	req := core.NewEvent(core.TypeVoteRequested, DriverID)
	req.Payload["topic"] = topic
	if err := d.bus.Publish(req); err != nil {
		return debate.Summary{}, err
	}

	return d.manager.EndDebate(topic)
}

// draftRound generates one speech per senator concurrently and joins
// every draft before returning. Failed drafts fall back to fixed text
// so the round's event protocol is never broken.
func (d *Driver) draftRound(ctx context.Context, topic string, ids []string) map[string]draft {
	var wg sync.WaitGroup
	out := make(chan draft, len(ids))
	for _, id := range ids {
		ag, ok := d.registry.Get(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(ag core.Agent) {
			defer wg.Done()
			stance := core.StanceNeutral
			if h, ok := ag.(stanceHolder); ok {
				stance = h.Stance()
			}
			p := textgen.Profile{ID: ag.ID(), Name: ag.Name(), Faction: ag.Faction(), Rank: ag.Rank()}
			content, points, err := d.gen.ComposeSpeech(ctx, p, topic, stance)
			out <- draft{speaker: ag.ID(), content: content, keyPoints: points, stance: stance, err: err}
		}(ag)
	}
	wg.Wait()
	close(out)

	drafts := make(map[string]draft, len(ids))
	for dr := range out {
		if dr.err != nil {
			d.logger.Printf("session: draft failed for %s: %v", dr.speaker, dr.err)
			dr.content = "The senator yields the floor without remarks."
			dr.keyPoints = []string{topic}
		}
		drafts[dr.speaker] = dr
	}
	return drafts
}

func (d *Driver) pace(ctx context.Context) error {
	if d.pacing <= 0 {
		return nil
	}
	select {
	case <-time.After(d.pacing):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
