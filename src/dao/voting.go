package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/membership-dao/src/dao/chain"
	"github.com/stake-plus/membership-dao/src/metrics"
)

// CastVote records caller's vote on id.
func (e *Engine) CastVote(ctx context.Context, caller common.Address, id ProposalID, choice VoteChoice) error {
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		p, err := e.checkVote(tx.Now(), id, caller, choice)
		if err != nil {
			return err
		}
		e.applyVote(ctx, tx, p, caller, choice, false)
		return nil
	})
	e.finish("cast_vote", err, caller)
	return err
}

// CastVoteFromSignature records the vote of whoever signed the ballot
// {id, choice}. The relayer only submits it and needs no membership. The
// recovered voter is returned.
func (e *Engine) CastVoteFromSignature(ctx context.Context, relayer common.Address, id ProposalID, choice VoteChoice, sig []byte) (common.Address, error) {
	var voter common.Address
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		var (
			p   *Proposal
			err error
		)
		voter, p, err = e.checkSigned(tx.Now(), id, choice, sig)
		if err != nil {
			return err
		}
		e.applyVote(ctx, tx, p, voter, choice, true)
		return nil
	})
	e.finish("cast_vote_signed", err, relayer)
	return voter, err
}

// BatchCastVotesFromSignatures applies many signed ballots at once. Every
// ballot is checked before any is counted: if one is rejected the call
// fails with a *BallotError naming it and no vote is recorded.
func (e *Engine) BatchCastVotesFromSignatures(ctx context.Context, relayer common.Address, ids []ProposalID, choices []VoteChoice, sigs [][]byte) ([]common.Address, error) {
	if len(ids) != len(choices) || len(ids) != len(sigs) {
		err := fmt.Errorf("%d ids, %d choices, %d signatures: %w", len(ids), len(choices), len(sigs), ErrLengthMismatch)
		e.finish("cast_vote_batch", err, relayer)
		return nil, err
	}

	type staged struct {
		p      *Proposal
		voter  common.Address
		choice VoteChoice
	}
	type voteKey struct {
		id    ProposalID
		voter common.Address
	}

	voters := make([]common.Address, len(ids))
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		batch := make([]staged, 0, len(ids))
		seen := make(map[voteKey]struct{}, len(ids))
		for i := range ids {
			voter, p, err := e.checkSigned(tx.Now(), ids[i], choices[i], sigs[i])
			if err != nil {
				return &BallotError{Index: i, Err: err}
			}
			key := voteKey{id: ids[i], voter: voter}
			if _, dup := seen[key]; dup {
				return &BallotError{Index: i, Err: fmt.Errorf("%w: repeated in batch", ErrAlreadyVoted)}
			}
			seen[key] = struct{}{}
			voters[i] = voter
			batch = append(batch, staged{p: p, voter: voter, choice: choices[i]})
		}
		for _, s := range batch {
			e.applyVote(ctx, tx, s.p, s.voter, s.choice, true)
		}
		return nil
	})
	e.finish("cast_vote_batch", err, relayer)
	if err != nil {
		return nil, err
	}
	return voters, nil
}

func (e *Engine) checkSigned(now time.Time, id ProposalID, choice VoteChoice, sig []byte) (common.Address, *Proposal, error) {
	if !choice.Valid() {
		return common.Address{}, nil, fmt.Errorf("%w: %s", ErrInvalidChoice, choice)
	}
	voter, err := RecoverBallotSigner(e.Domain(), Ballot{ProposalID: id, Choice: choice}, sig)
	if err != nil {
		return common.Address{}, nil, err
	}
	p, err := e.checkVote(now, id, voter, choice)
	if err != nil {
		return voter, nil, err
	}
	return voter, p, nil
}

// checkVote holds the eligibility rules shared by every voting path.
func (e *Engine) checkVote(now time.Time, id ProposalID, voter common.Address, choice VoteChoice) (*Proposal, error) {
	if !choice.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChoice, choice)
	}
	p, ok := e.proposals.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if st := e.opts.Rules.Resolve(p, now); st != StatusOngoingVoting {
		return nil, fmt.Errorf("%w: status is %s", ErrNotOngoing, st)
	}
	if !e.members.IsMemberAsOf(voter, p.CreatedAt) {
		return nil, fmt.Errorf("%w: %s", ErrIneligibleVoter, voter.Hex())
	}
	if p.HasVoted(voter) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyVoted, voter.Hex())
	}
	return p, nil
}

func (e *Engine) applyVote(ctx context.Context, tx *chain.Tx, p *Proposal, voter common.Address, choice VoteChoice, relayed bool) {
	tx.Journal(func() { p.unrecord(voter, choice) })
	p.record(voter, choice)
	ev := proposalEvent(EventVoteCast, p, StatusOngoingVoting, voter, tx.Now())
	ev.Choice = choice
	ev.Relayed = relayed
	e.emit(ctx, tx, ev)
	tx.OnCommit(func() { metrics.RecordVote(choice.String(), relayed) })
}
