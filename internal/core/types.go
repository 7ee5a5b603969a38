package core

// Stance is a senator's tri-state position on the active topic.
// The zero value means no stance has been formed yet.
type Stance int

const (
	StanceUnset Stance = iota
	StanceNeutral
	StanceSupport
	StanceOppose
)

func (s Stance) String() string {
	switch s {
	case StanceNeutral:
		return "neutral"
	case StanceSupport:
		return "support"
	case StanceOppose:
		return "oppose"
	}
	return "unset"
}

// Decided reports whether the stance carries an actual position.
func (s Stance) Decided() bool {
	return s == StanceSupport || s == StanceOppose
}

// ParseStance maps a wire tag back to a Stance. Unknown tags parse as unset.
func ParseStance(tag string) Stance {
	switch tag {
	case "neutral":
		return StanceNeutral
	case "support":
		return StanceSupport
	case "oppose":
		return StanceOppose
	}
	return StanceUnset
}

// Vote is a cast ballot on the active topic.
type Vote string

const (
	VoteFor     Vote = "for"
	VoteAgainst Vote = "against"
	VoteAbstain Vote = "abstain"
)

// InterjectionKind classifies a reaction raised during another
// senator's speech.
type InterjectionKind string

const (
	InterjectionAcclamation InterjectionKind = "acclamation"
	InterjectionObjection   InterjectionKind = "objection"
	InterjectionProcedural  InterjectionKind = "procedural"
	InterjectionEmotional   InterjectionKind = "emotional"
)
