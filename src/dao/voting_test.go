package dao

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) sign(a account, id ProposalID, choice VoteChoice) []byte {
	f.t.Helper()
	sig, err := SignBallot(f.engine.Domain(), Ballot{ProposalID: id, Choice: choice}, a.key)
	require.NoError(f.t, err)
	return sig
}

func TestCastVoteFromSignature(t *testing.T) {
	f := newFixture(t)
	m := f.members(2)
	relayer := newAccount(t)
	id, err := f.engine.Propose(f.ctx, m[0].addr, counterBatch(0))
	require.NoError(t, err)

	voter, err := f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteFor, f.sign(m[1], id, VoteFor))
	require.NoError(t, err)
	assert.Equal(t, m[1].addr, voter)
	assert.Equal(t, uint64(1), f.engine.Tally(id, VoteFor))
	assert.True(t, f.engine.HasVoted(id, m[1].addr))
	assert.False(t, f.engine.HasVoted(id, relayer.addr))

	t.Run("replay", func(t *testing.T) {
		_, err := f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteFor, f.sign(m[1], id, VoteFor))
		assert.ErrorIs(t, err, ErrAlreadyVoted)
	})

	t.Run("choice not signed", func(t *testing.T) {
		sig := f.sign(m[0], id, VoteFor)
		voter, err := f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteAgainst, sig)
		require.Error(t, err)
		assert.NotEqual(t, m[0].addr, voter)
		assert.Zero(t, f.engine.Tally(id, VoteAgainst))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteFor, []byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrBadSignature)
		assert.Equal(t, KindInput, Kind(err))
	})

	t.Run("other deployment", func(t *testing.T) {
		d := f.engine.Domain()
		d.ChainID = big.NewInt(1)
		sig, err := SignBallot(d, Ballot{ProposalID: id, Choice: VoteFor}, m[0].key)
		require.NoError(t, err)
		_, err = f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteFor, sig)
		assert.ErrorIs(t, err, ErrIneligibleVoter)
		assert.False(t, f.engine.HasVoted(id, m[0].addr))
	})

	t.Run("non-member signer", func(t *testing.T) {
		_, err := f.engine.CastVoteFromSignature(f.ctx, relayer.addr, id, VoteFor, f.sign(relayer, id, VoteFor))
		assert.ErrorIs(t, err, ErrIneligibleVoter)
	})
}

func TestBatchCastVotesFromSignatures(t *testing.T) {
	f := newFixture(t)
	m := f.members(4)
	relayer := newAccount(t)
	id, err := f.engine.Propose(f.ctx, m[0].addr, counterBatch(0))
	require.NoError(t, err)

	batch := func(accounts ...account) ([]ProposalID, []VoteChoice, [][]byte) {
		ids := make([]ProposalID, len(accounts))
		choices := make([]VoteChoice, len(accounts))
		sigs := make([][]byte, len(accounts))
		for i, a := range accounts {
			ids[i], choices[i] = id, VoteFor
			sigs[i] = f.sign(a, id, VoteFor)
		}
		return ids, choices, sigs
	}

	t.Run("length mismatch", func(t *testing.T) {
		ids, choices, sigs := batch(m[0], m[1])
		_, err := f.engine.BatchCastVotesFromSignatures(f.ctx, relayer.addr, ids, choices[:1], sigs)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("one bad signature aborts", func(t *testing.T) {
		ids, choices, sigs := batch(m[0], m[1], m[2])
		sigs[2] = append([]byte(nil), sigs[2]...)
		sigs[2][64] = 9

		_, err := f.engine.BatchCastVotesFromSignatures(f.ctx, relayer.addr, ids, choices, sigs)
		var ballotErr *BallotError
		require.True(t, errors.As(err, &ballotErr))
		assert.Equal(t, 2, ballotErr.Index)
		assert.ErrorIs(t, err, ErrBadSignature)
		assert.Zero(t, f.engine.Tally(id, VoteFor))
		assert.False(t, f.engine.HasVoted(id, m[0].addr))
	})

	t.Run("repeated signer aborts", func(t *testing.T) {
		ids, choices, sigs := batch(m[0], m[0])
		_, err := f.engine.BatchCastVotesFromSignatures(f.ctx, relayer.addr, ids, choices, sigs)
		var ballotErr *BallotError
		require.True(t, errors.As(err, &ballotErr))
		assert.Equal(t, 1, ballotErr.Index)
		assert.ErrorIs(t, err, ErrAlreadyVoted)
		assert.Zero(t, f.engine.Tally(id, VoteFor))
	})

	t.Run("counts every ballot", func(t *testing.T) {
		ids, choices, sigs := batch(m...)
		voters, err := f.engine.BatchCastVotesFromSignatures(f.ctx, relayer.addr, ids, choices, sigs)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{m[0].addr, m[1].addr, m[2].addr, m[3].addr}, voters)
		assert.Equal(t, uint64(len(m)), f.engine.Tally(id, VoteFor))
	})

	t.Run("empty batch", func(t *testing.T) {
		voters, err := f.engine.BatchCastVotesFromSignatures(f.ctx, relayer.addr, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, voters)
	})
}

func TestSignedVotesAcrossProposals(t *testing.T) {
	f := newFixture(t)
	m := f.members(2)
	a, err := f.engine.Propose(f.ctx, m[0].addr, counterBatch(0))
	require.NoError(t, err)
	b, err := f.engine.Propose(f.ctx, m[0].addr, counterBatch(1))
	require.NoError(t, err)

	ids := []ProposalID{a, b, a}
	choices := []VoteChoice{VoteFor, VoteAgainst, VoteAbstain}
	sigs := [][]byte{
		f.sign(m[0], a, VoteFor),
		f.sign(m[0], b, VoteAgainst),
		f.sign(m[1], a, VoteAbstain),
	}
	_, err = f.engine.BatchCastVotesFromSignatures(f.ctx, m[1].addr, ids, choices, sigs)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f.engine.Tally(a, VoteFor))
	assert.Equal(t, uint64(1), f.engine.Tally(a, VoteAbstain))
	assert.Equal(t, uint64(1), f.engine.Tally(b, VoteAgainst))
}
