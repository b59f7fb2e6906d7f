package dao

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/membership-dao/src/dao/chain"
	"github.com/stake-plus/membership-dao/src/dao/targets"
	"github.com/stake-plus/membership-dao/src/logging"
)

var (
	counterAddr = common.HexToAddress("0x00000000000000000000000000000000000c0c0c")
	nftAddr     = common.HexToAddress("0x000000000000000000000000000000000000a7f7")
	marketAddr  = common.HexToAddress("0x000000000000000000000000000000000000a3a7")
	sellerAddr  = common.HexToAddress("0x00000000000000000000000000000000005e11e7")
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}

type account struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return account{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// recorder collects committed events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	clock   *chain.ManualClock
	ledger  *chain.Ledger
	engine  *Engine
	counter *targets.Counter
	nft     *targets.NFT
	market  *targets.Marketplace
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := chain.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := chain.NewLedger(clock)

	opts := DefaultOptions()
	opts.Marketplace = marketAddr
	engine, err := New(ledger, opts)
	require.NoError(t, err)

	counter, err := targets.DeployCounter(ledger, counterAddr)
	require.NoError(t, err)
	nft, err := targets.DeployNFT(ledger, nftAddr, "Peoples NFT", "PPL")
	require.NoError(t, err)
	market, err := targets.DeployMarketplace(ledger, marketAddr)
	require.NoError(t, err)

	events := &recorder{}
	engine.AddObserver(events)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		clock:   clock,
		ledger:  ledger,
		engine:  engine,
		counter: counter,
		nft:     nft,
		market:  market,
		events:  events,
	}
}

// members creates n funded accounts that join and then lets a second pass
// so they are eligible for proposals created afterwards.
func (f *fixture) members(n int) []account {
	f.t.Helper()
	out := make([]account, n)
	for i := range out {
		out[i] = f.funded()
		require.NoError(f.t, f.engine.Join(f.ctx, out[i].addr, f.engine.MembershipPrice()))
	}
	f.clock.Advance(time.Second)
	return out
}

func (f *fixture) funded() account {
	f.t.Helper()
	a := newAccount(f.t)
	require.NoError(f.t, f.ledger.Mint(a.addr, ether(5)))
	return a
}

func (f *fixture) closeVoting() {
	f.clock.Advance(f.engine.Rules().VotingWindow + time.Second)
}

// pass proposes d, has every voter vote FOR and closes the window.
func (f *fixture) pass(d Descriptor, proposer account, voters ...account) ProposalID {
	f.t.Helper()
	id, err := f.engine.Propose(f.ctx, proposer.addr, d)
	require.NoError(f.t, err)
	for _, v := range voters {
		require.NoError(f.t, f.engine.CastVote(f.ctx, v.addr, id, VoteFor))
	}
	f.closeVoting()
	require.Equal(f.t, StatusPassed, f.engine.GetProposalStatus(id))
	return id
}

func counterBatch(disambiguator int64) Descriptor {
	return Descriptor{
		Calls: []Call{
			{Target: counterAddr, Payload: targets.IncrementPayload()},
			{Target: counterAddr, Payload: targets.IncrementPayload()},
			{Target: counterAddr, Payload: targets.IncrementByPayload(5)},
		},
		Disambiguator: big.NewInt(disambiguator),
	}
}
