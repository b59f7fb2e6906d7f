package dao

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a committed engine change.
type EventKind string

const (
	EventMemberJoined     EventKind = "member_joined"
	EventProposalCreated  EventKind = "proposal_created"
	EventVoteCast         EventKind = "vote_cast"
	EventProposalRevoked  EventKind = "proposal_revoked"
	EventProposalExecuted EventKind = "proposal_executed"
	EventExecutionFailed  EventKind = "execution_failed"
)

// Event describes one committed change, or a rolled back execution attempt.
// Proposal fields are the state right after the change.
type Event struct {
	Kind          EventKind
	At            time.Time
	Account       common.Address
	ProposalID    ProposalID
	Proposer      common.Address
	CreatedAt     time.Time
	EligibleCount int
	Choice        VoteChoice
	Relayed       bool
	Votes         Tally
	Status        Status
	Error         string
}

// Observer receives events after the transaction that produced them
// commits. An observer error is logged and never undoes the change.
type Observer interface {
	Observe(ctx context.Context, ev Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) Observe(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func proposalEvent(kind EventKind, p *Proposal, status Status, account common.Address, at time.Time) Event {
	return Event{
		Kind:          kind,
		At:            at,
		Account:       account,
		ProposalID:    p.ID,
		Proposer:      p.Proposer,
		CreatedAt:     p.CreatedAt,
		EligibleCount: p.EligibleCount,
		Votes:         p.Votes,
		Status:        status,
	}
}
