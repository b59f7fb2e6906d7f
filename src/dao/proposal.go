package dao

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Proposal is the stored record of a proposed execution. Only the identity
// of the execution is kept; callers resupply the descriptor to execute it.
type Proposal struct {
	ID            ProposalID
	Proposer      common.Address
	CreatedAt     time.Time
	EligibleCount int
	Votes         Tally
	Revoked       bool
	Executed      bool

	voted map[common.Address]struct{}
}

// HasVoted reports whether account already voted on p.
func (p *Proposal) HasVoted(account common.Address) bool {
	_, ok := p.voted[account]
	return ok
}

// Voters is the number of accounts that voted.
func (p *Proposal) Voters() int {
	return len(p.voted)
}

func (p *Proposal) record(voter common.Address, choice VoteChoice) {
	p.voted[voter] = struct{}{}
	p.Votes.add(choice)
}

func (p *Proposal) unrecord(voter common.Address, choice VoteChoice) {
	delete(p.voted, voter)
	p.Votes.remove(choice)
}

// Store holds proposals by identity. Records are only removed when the
// transaction that created them rolls back.
type Store struct {
	proposals map[ProposalID]*Proposal
}

func NewStore() *Store {
	return &Store{proposals: make(map[ProposalID]*Proposal)}
}

// Get returns the live record for id.
func (s *Store) Get(id ProposalID) (*Proposal, bool) {
	p, ok := s.proposals[id]
	return p, ok
}

// Len is the number of proposals ever created.
func (s *Store) Len() int {
	return len(s.proposals)
}

func (s *Store) create(id ProposalID, proposer common.Address, at time.Time, eligible int) (*Proposal, error) {
	if _, ok := s.proposals[id]; ok {
		return nil, ErrDuplicateProposal
	}
	p := &Proposal{
		ID:            id,
		Proposer:      proposer,
		CreatedAt:     at,
		EligibleCount: eligible,
		voted:         make(map[common.Address]struct{}),
	}
	s.proposals[id] = p
	return p, nil
}
