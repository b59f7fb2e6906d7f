package dao

import (
	"fmt"
	"strings"
)

// VoteChoice is the option a voter picks. The numeric values are part of
// the signed ballot format.
type VoteChoice uint8

const (
	NotVotedYet VoteChoice = iota
	VoteFor
	VoteAgainst
	VoteAbstain
)

// Valid reports whether c is an option a voter may cast.
func (c VoteChoice) Valid() bool {
	return c == VoteFor || c == VoteAgainst || c == VoteAbstain
}

func (c VoteChoice) String() string {
	switch c {
	case NotVotedYet:
		return "not_voted_yet"
	case VoteFor:
		return "for"
	case VoteAgainst:
		return "against"
	case VoteAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

// ParseVoteChoice accepts for, against or abstain.
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "for":
		return VoteFor, nil
	case "against":
		return VoteAgainst, nil
	case "abstain":
		return VoteAbstain, nil
	}
	return NotVotedYet, fmt.Errorf("%q: %w", s, ErrInvalidChoice)
}

func (c VoteChoice) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *VoteChoice) UnmarshalText(text []byte) error {
	parsed, err := ParseVoteChoice(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Tally counts votes per option.
type Tally struct {
	For     uint64 `json:"for"`
	Against uint64 `json:"against"`
	Abstain uint64 `json:"abstain"`
}

// Count returns the bucket for c, zero for anything that is not an option.
func (t Tally) Count(c VoteChoice) uint64 {
	switch c {
	case VoteFor:
		return t.For
	case VoteAgainst:
		return t.Against
	case VoteAbstain:
		return t.Abstain
	}
	return 0
}

// Total is the number of votes cast.
func (t Tally) Total() uint64 {
	return t.For + t.Against + t.Abstain
}

func (t *Tally) add(c VoteChoice) {
	switch c {
	case VoteFor:
		t.For++
	case VoteAgainst:
		t.Against++
	case VoteAbstain:
		t.Abstain++
	}
}

func (t *Tally) remove(c VoteChoice) {
	switch c {
	case VoteFor:
		t.For--
	case VoteAgainst:
		t.Against--
	case VoteAbstain:
		t.Abstain--
	}
}
