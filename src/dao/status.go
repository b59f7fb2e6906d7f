package dao

import (
	"fmt"
	"time"
)

// Status is derived from a proposal's stored fields and the current time.
type Status uint8

const (
	StatusNonExistent Status = iota
	StatusOngoingVoting
	StatusRevoked
	StatusFailed
	StatusPassed
	StatusExecuted
)

func (s Status) String() string {
	switch s {
	case StatusNonExistent:
		return "non_existent"
	case StatusOngoingVoting:
		return "ongoing_voting"
	case StatusRevoked:
		return "revoked"
	case StatusFailed:
		return "failed"
	case StatusPassed:
		return "passed"
	case StatusExecuted:
		return "executed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DefaultVotingWindow is used when Rules leave the window unset.
const DefaultVotingWindow = 5 * 24 * time.Hour

// Rules decide when voting closes and what passes.
type Rules struct {
	VotingWindow time.Duration
	// QuorumBps is the share of the eligible-member snapshot, in basis
	// points, that must vote FOR. At least one FOR vote is always required.
	QuorumBps uint32
}

func (r Rules) window() time.Duration {
	if r.VotingWindow <= 0 {
		return DefaultVotingWindow
	}
	return r.VotingWindow
}

// RequiredFor is the minimum FOR count for a proposal with the given
// eligible-member snapshot.
func (r Rules) RequiredFor(eligible int) uint64 {
	need := (uint64(eligible)*uint64(r.QuorumBps) + 9999) / 10000
	if need < 1 {
		need = 1
	}
	return need
}

// ClosesAt is when voting on p ends.
func (r Rules) ClosesAt(p *Proposal) time.Time {
	return p.CreatedAt.Add(r.window())
}

// Resolve computes the status of p at now. A nil p does not exist.
func (r Rules) Resolve(p *Proposal, now time.Time) Status {
	switch {
	case p == nil:
		return StatusNonExistent
	case p.Executed:
		return StatusExecuted
	case p.Revoked:
		return StatusRevoked
	case now.Before(r.ClosesAt(p)):
		return StatusOngoingVoting
	case p.Votes.For > p.Votes.Against && p.Votes.For >= r.RequiredFor(p.EligibleCount):
		return StatusPassed
	default:
		return StatusFailed
	}
}
