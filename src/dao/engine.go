// Package dao implements a membership-gated governance engine: members
// propose batches of calls, vote on them directly or through signed
// ballots, and passed batches execute atomically from the engine's account.
package dao

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"github.com/stake-plus/membership-dao/src/dao/chain"
	"github.com/stake-plus/membership-dao/src/logging"
	"github.com/stake-plus/membership-dao/src/metrics"
)

// Options configure an engine.
type Options struct {
	Name    string
	Version string
	ChainID *big.Int
	// Address is where the engine is deployed on the ledger. It is the
	// verifying contract of the signing domain and the sender of every
	// executed call.
	Address         common.Address
	MembershipPrice *big.Int
	Rules           Rules
	// Marketplace is the NFT market used by the buyNft action.
	Marketplace common.Address
}

// DefaultOptions charge one ether per membership and keep voting open for
// five days.
func DefaultOptions() Options {
	return Options{
		Name:            "MembershipDAO",
		Version:         "1",
		ChainID:         big.NewInt(31337),
		Address:         common.HexToAddress("0x0000000000000000000000000000000000000da0"),
		MembershipPrice: big.NewInt(params.Ether),
		Rules:           Rules{VotingWindow: DefaultVotingWindow},
	}
}

func (o Options) validate() error {
	switch {
	case o.Name == "":
		return errors.New("dao: name is required")
	case o.Version == "":
		return errors.New("dao: version is required")
	case o.ChainID == nil || o.ChainID.Sign() <= 0:
		return errors.New("dao: chain id must be positive")
	case o.Address == (common.Address{}):
		return errors.New("dao: address is required")
	case o.MembershipPrice == nil || o.MembershipPrice.Sign() <= 0:
		return errors.New("dao: membership price must be positive")
	case o.Rules.QuorumBps > 10000:
		return fmt.Errorf("dao: quorum of %d bps exceeds 100%%", o.Rules.QuorumBps)
	}
	return nil
}

// Engine is the governance engine. It lives on a ledger as a contract so
// that executed batches can call back into it; every operation runs as one
// ledger transaction and journals the records it changes.
type Engine struct {
	ledger    *chain.Ledger
	opts      Options
	members   *Registry
	proposals *Store
	observers []Observer
	log       zerolog.Logger
}

// New deploys an engine on ledger at opts.Address.
func New(ledger *chain.Ledger, opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Rules.VotingWindow <= 0 {
		opts.Rules.VotingWindow = DefaultVotingWindow
	}
	e := &Engine{
		ledger:    ledger,
		opts:      opts,
		members:   NewRegistry(),
		proposals: NewStore(),
		log:       logging.Component("dao").With().Str("engine", opts.Address.Hex()).Logger(),
	}
	if err := ledger.Deploy(opts.Address, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddObserver registers observers. Call before the engine serves traffic.
func (e *Engine) AddObserver(obs ...Observer) {
	e.observers = append(e.observers, obs...)
}

// Address is the engine's ledger address.
func (e *Engine) Address() common.Address {
	return e.opts.Address
}

// Domain is the signing domain ballots must be signed under.
func (e *Engine) Domain() Domain {
	return Domain{
		Name:              e.opts.Name,
		Version:           e.opts.Version,
		ChainID:           new(big.Int).Set(e.opts.ChainID),
		VerifyingContract: e.opts.Address,
	}
}

// Rules returns the voting rules.
func (e *Engine) Rules() Rules {
	return e.opts.Rules
}

// MembershipPrice is the exact payment Join accepts.
func (e *Engine) MembershipPrice() *big.Int {
	return new(big.Int).Set(e.opts.MembershipPrice)
}

// Treasury is the balance the engine custodies.
func (e *Engine) Treasury() *big.Int {
	return e.ledger.BalanceOf(e.opts.Address)
}

// Join buys a membership for caller. payment must equal the membership
// price and is moved from caller's balance into the treasury.
func (e *Engine) Join(ctx context.Context, caller common.Address, payment *big.Int) error {
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		return e.join(ctx, tx, caller, payment)
	})
	e.finish("join", err, caller)
	return err
}

func (e *Engine) join(ctx context.Context, tx *chain.Tx, caller common.Address, payment *big.Int) error {
	if e.members.IsMember(caller) {
		return ErrAlreadyMember
	}
	if payment == nil || payment.Cmp(e.opts.MembershipPrice) != 0 {
		return fmt.Errorf("%w: paid %v, price is %s", ErrWrongAmount, payment, e.opts.MembershipPrice)
	}
	if err := tx.Transfer(caller, e.opts.Address, payment); err != nil {
		return fmt.Errorf("membership payment: %w", err)
	}
	chain.JournalKey(tx, e.members.members, caller)
	if err := e.members.add(caller, tx.Now()); err != nil {
		return err
	}
	count := e.members.Count()
	e.emit(ctx, tx, Event{Kind: EventMemberJoined, At: tx.Now(), Account: caller})
	tx.OnCommit(func() { metrics.SetMembers(count) })
	return nil
}

// Propose records a proposal for d on behalf of caller and returns its
// identity.
func (e *Engine) Propose(ctx context.Context, caller common.Address, d Descriptor) (ProposalID, error) {
	var id ProposalID
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		var err error
		id, err = e.propose(ctx, tx, caller, d)
		return err
	})
	e.finish("propose", err, caller)
	return id, err
}

func (e *Engine) propose(ctx context.Context, tx *chain.Tx, caller common.Address, d Descriptor) (ProposalID, error) {
	if !e.members.IsMember(caller) {
		return ProposalID{}, ErrNotAMember
	}
	if len(d.Calls) == 0 {
		return ProposalID{}, ErrEmptyExecution
	}
	id, err := DeriveID(d)
	if err != nil {
		return ProposalID{}, err
	}
	chain.JournalKey(tx, e.proposals.proposals, id)
	p, err := e.proposals.create(id, caller, tx.Now(), e.members.Count())
	if err != nil {
		return ProposalID{}, fmt.Errorf("%s: %w", id, err)
	}
	e.emit(ctx, tx, proposalEvent(EventProposalCreated, p, StatusOngoingVoting, caller, tx.Now()))
	return id, nil
}

// RevokeProposal lets the proposer withdraw a proposal while voting is
// still open. Once the window has closed it fails with ErrNotOngoing for
// every caller.
func (e *Engine) RevokeProposal(ctx context.Context, caller common.Address, id ProposalID) error {
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		p, ok := e.proposals.Get(id)
		if !ok {
			return ErrNotFound
		}
		if st := e.opts.Rules.Resolve(p, tx.Now()); st != StatusOngoingVoting {
			return fmt.Errorf("%w: status is %s", ErrNotOngoing, st)
		}
		if p.Proposer != caller {
			return ErrNotProposer
		}
		tx.Journal(func() { p.Revoked = false })
		p.Revoked = true
		e.emit(ctx, tx, proposalEvent(EventProposalRevoked, p, StatusRevoked, caller, tx.Now()))
		return nil
	})
	e.finish("revoke", err, caller)
	return err
}

// GetProposalID derives the identity of d without touching state.
func (e *Engine) GetProposalID(d Descriptor) (ProposalID, error) {
	return DeriveID(d)
}

// GetProposalStatus resolves the status of id at the current ledger time.
func (e *Engine) GetProposalStatus(id ProposalID) Status {
	var st Status
	e.ledger.View(func(tx *chain.Tx) {
		p, _ := e.proposals.Get(id)
		st = e.opts.Rules.Resolve(p, tx.Now())
	})
	return st
}

// Tally returns the number of votes for choice on id; zero when id is
// unknown.
func (e *Engine) Tally(id ProposalID, choice VoteChoice) uint64 {
	var n uint64
	e.ledger.View(func(*chain.Tx) {
		if p, ok := e.proposals.Get(id); ok {
			n = p.Votes.Count(choice)
		}
	})
	return n
}

// ProposalView is a read-only copy of a proposal and its resolved status.
type ProposalView struct {
	ID            ProposalID     `json:"id"`
	Proposer      common.Address `json:"proposer"`
	CreatedAt     time.Time      `json:"createdAt"`
	ClosesAt      time.Time      `json:"closesAt"`
	EligibleCount int            `json:"eligibleCount"`
	RequiredFor   uint64         `json:"requiredFor"`
	Votes         Tally          `json:"votes"`
	Voters        int            `json:"voters"`
	Status        Status         `json:"status"`
}

// Proposal returns a view of id.
func (e *Engine) Proposal(id ProposalID) (ProposalView, bool) {
	var (
		view ProposalView
		ok   bool
	)
	e.ledger.View(func(tx *chain.Tx) {
		var p *Proposal
		p, ok = e.proposals.Get(id)
		if !ok {
			return
		}
		view = ProposalView{
			ID:            p.ID,
			Proposer:      p.Proposer,
			CreatedAt:     p.CreatedAt,
			ClosesAt:      e.opts.Rules.ClosesAt(p),
			EligibleCount: p.EligibleCount,
			RequiredFor:   e.opts.Rules.RequiredFor(p.EligibleCount),
			Votes:         p.Votes,
			Voters:        p.Voters(),
			Status:        e.opts.Rules.Resolve(p, tx.Now()),
		}
	})
	return view, ok
}

// HasVoted reports whether account voted on id.
func (e *Engine) HasVoted(id ProposalID, account common.Address) bool {
	var voted bool
	e.ledger.View(func(*chain.Tx) {
		if p, ok := e.proposals.Get(id); ok {
			voted = p.HasVoted(account)
		}
	})
	return voted
}

// Member returns the membership record of account.
func (e *Engine) Member(account common.Address) (Member, bool) {
	var (
		m  Member
		ok bool
	)
	e.ledger.View(func(*chain.Tx) {
		m, ok = e.members.Get(account)
	})
	return m, ok
}

// MemberCount is the current number of members.
func (e *Engine) MemberCount() int {
	var n int
	e.ledger.View(func(*chain.Tx) {
		n = e.members.Count()
	})
	return n
}

func (e *Engine) emit(ctx context.Context, tx *chain.Tx, ev Event) {
	tx.OnCommit(func() { e.notify(ctx, ev) })
}

func (e *Engine) notify(ctx context.Context, ev Event) {
	entry := e.log.Info().Str("event", string(ev.Kind)).Str("account", ev.Account.Hex())
	if !ev.ProposalID.IsZero() {
		entry = entry.Str("proposal", ev.ProposalID.Hex()).Str("status", ev.Status.String())
	}
	if ev.Error != "" {
		entry = entry.Str("err", ev.Error)
	}
	entry.Msg("dao event")

	for _, o := range e.observers {
		if err := o.Observe(ctx, ev); err != nil {
			e.log.Warn().Err(err).Str("event", string(ev.Kind)).Msg("observer failed")
		}
	}
}

func (e *Engine) finish(op string, err error, caller common.Address) {
	metrics.RecordOperation(op, resultLabel(err))
	if err != nil {
		e.log.Debug().Err(err).Str("op", op).Str("caller", caller.Hex()).Msg("operation rejected")
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return Kind(err).String()
}
