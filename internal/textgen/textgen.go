package textgen

import (
	"context"
	"fmt"
	"log"

	"go-senate-sim/internal/core"
)

// Profile identifies the senator a generation request is made for.
type Profile struct {
	ID      string
	Name    string
	Faction string
	Rank    int
}

// Generator produces debate content. Implementations may block on
// external calls; every method honors ctx.
type Generator interface {
	DecideStance(ctx context.Context, p Profile, topic string) (core.Stance, string, error)
	ComposeSpeech(ctx context.Context, p Profile, topic string, stance core.Stance) (string, []string, error)
	ComposeInterjection(ctx context.Context, p Profile, kind core.InterjectionKind, speaker string) (string, error)
	ResolveVote(ctx context.Context, p Profile, topic string) (core.Vote, string, error)
}

// Static derives deterministic content from its inputs. It backs tests
// and offline runs, and supplies the Fallback wrapper's substitutes.
type Static struct{}

func (Static) DecideStance(_ context.Context, p Profile, topic string) (core.Stance, string, error) {
	var stance core.Stance
	switch (len(p.Faction) + len(topic)) % 3 {
	case 0:
		stance = core.StanceSupport
	case 1:
		stance = core.StanceOppose
	default:
		stance = core.StanceNeutral
	}
	reasoning := fmt.Sprintf("%s weighs %q against the interests of the %s faction", p.Name, topic, p.Faction)
	return stance, reasoning, nil
}

func (Static) ComposeSpeech(_ context.Context, p Profile, topic string, stance core.Stance) (string, []string, error) {
	content := fmt.Sprintf("%s of the %s faction addresses the senate on %q, speaking in %s.", p.Name, p.Faction, topic, stance)
	return content, []string{topic}, nil
}

func (Static) ComposeInterjection(_ context.Context, p Profile, kind core.InterjectionKind, speaker string) (string, error) {
	switch kind {
	case core.InterjectionAcclamation:
		return fmt.Sprintf("%s applauds %s.", p.Name, speaker), nil
	case core.InterjectionObjection:
		return fmt.Sprintf("%s objects to %s.", p.Name, speaker), nil
	case core.InterjectionProcedural:
		return fmt.Sprintf("%s raises a point of order.", p.Name), nil
	default:
		return fmt.Sprintf("%s cries out at %s.", p.Name, speaker), nil
	}
}

func (Static) ResolveVote(_ context.Context, p Profile, topic string) (core.Vote, string, error) {
	if (len(p.ID)+len(topic))%2 == 0 {
		return core.VoteFor, "pressed for a decision, " + p.Name + " assents", nil
	}
	return core.VoteAgainst, "pressed for a decision, " + p.Name + " dissents", nil
}

// Fallback wraps a generator and substitutes fixed content whenever the
// inner call fails, so an event of the expected type is always produced.
type Fallback struct {
	inner  Generator
	logger *log.Logger
}

// NewFallback wraps inner. A nil logger falls back to log.Default().
func NewFallback(inner Generator, logger *log.Logger) *Fallback {
	if logger == nil {
		logger = log.Default()
	}
	return &Fallback{inner: inner, logger: logger}
}

func (f *Fallback) DecideStance(ctx context.Context, p Profile, topic string) (core.Stance, string, error) {
	stance, reasoning, err := f.inner.DecideStance(ctx, p, topic)
	if err != nil {
		f.logger.Printf("textgen: stance generation failed for %s: %v", p.ID, err)
		return core.StanceNeutral, "the senator withholds judgement", nil
	}
	return stance, reasoning, nil
}

func (f *Fallback) ComposeSpeech(ctx context.Context, p Profile, topic string, stance core.Stance) (string, []string, error) {
	content, points, err := f.inner.ComposeSpeech(ctx, p, topic, stance)
	if err != nil {
		f.logger.Printf("textgen: speech generation failed for %s: %v", p.ID, err)
		return fmt.Sprintf("%s yields the floor without remarks on %q.", p.Name, topic), []string{topic}, nil
	}
	return content, points, nil
}

func (f *Fallback) ComposeInterjection(ctx context.Context, p Profile, kind core.InterjectionKind, speaker string) (string, error) {
	content, err := f.inner.ComposeInterjection(ctx, p, kind, speaker)
	if err != nil {
		f.logger.Printf("textgen: interjection generation failed for %s: %v", p.ID, err)
		return fmt.Sprintf("%s murmurs.", p.Name), nil
	}
	return content, nil
}

func (f *Fallback) ResolveVote(ctx context.Context, p Profile, topic string) (core.Vote, string, error) {
	vote, reasoning, err := f.inner.ResolveVote(ctx, p, topic)
	if err != nil {
		f.logger.Printf("textgen: vote resolution failed for %s: %v", p.ID, err)
		return core.VoteAbstain, "the senator could not be moved to decide", nil
	}
	return vote, reasoning, nil
}

var (
	_ Generator = Static{}
	_ Generator = (*Fallback)(nil)
)
