// Package chain models the host ledger the DAO runs on: native balances,
// addressable contracts, serialized transactions and rollback.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoContract        = errors.New("no contract at address")
	ErrAddressInUse      = errors.New("address already has a contract")
	ErrUnknownMethod     = errors.New("unknown method")
	ErrNotPayable        = errors.New("method is not payable")
	ErrNegativeValue     = errors.New("negative value")
)

// Ledger holds balances and contracts. Every state change happens inside a
// transaction; a failed transaction leaves no trace.
type Ledger struct {
	clock Clock

	mu        sync.RWMutex
	balances  map[common.Address]*big.Int
	contracts map[common.Address]Contract
	seq       uint64

	hookMu    sync.Mutex
	hookCond  *sync.Cond
	delivered uint64
}

// NewLedger creates an empty ledger. A nil clock means wall time.
func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	l := &Ledger{
		clock:     clock,
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]Contract),
	}
	l.hookCond = sync.NewCond(&l.hookMu)
	return l
}

// Deploy registers c at addr.
func (l *Ledger) Deploy(addr common.Address, c Contract) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.contracts[addr]; ok {
		return fmt.Errorf("deploy %s: %w", addr.Hex(), ErrAddressInUse)
	}
	l.contracts[addr] = c
	return nil
}

// Mint credits amount to addr out of thin air. Used for genesis funding.
func (l *Ledger) Mint(addr common.Address, amount *big.Int) error {
	return l.Transact(func(tx *Tx) error {
		return tx.credit(addr, amount)
	})
}

// BalanceOf returns a copy of addr's balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	var out *big.Int
	l.View(func(tx *Tx) {
		out = tx.BalanceOf(addr)
	})
	return out
}

// Now returns the ledger time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Send is a top-level transaction from an external account: value moves
// from sender to recipient and the recipient's code runs with payload.
func (l *Ledger) Send(from, to common.Address, value *big.Int, payload []byte) ([]byte, error) {
	var out []byte
	err := l.Transact(func(tx *Tx) error {
		var err error
		out, err = tx.Invoke(from, to, value, payload)
		return err
	})
	return out, err
}

// Transact runs fn as one serialized transaction. When fn fails or
// panics, every change it journaled is undone in reverse order and only its
// rollback hooks run. Hooks of successive transactions run in commit order.
func (l *Ledger) Transact(fn func(tx *Tx) error) error {
	tx, err := l.commit(fn)
	if tx != nil {
		l.deliver(tx, err)
	}
	return err
}

// commit runs fn under the ledger lock. It returns tx when there are hooks
// to deliver, holding a commit sequence number for them.
func (l *Ledger) commit(fn func(tx *Tx) error) (_ *Tx, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{ledger: l, now: l.clock.Now()}
	defer func() {
		if r := recover(); r != nil {
			tx.unwind()
			panic(r)
		}
	}()
	err = fn(tx)
	hooks := tx.hooks
	if err != nil {
		tx.unwind()
		hooks = tx.rollbackHooks
	}
	if len(hooks) == 0 {
		return nil, err
	}
	l.seq++
	tx.seq = l.seq
	return tx, err
}

// deliver waits for every earlier commit to finish its hooks, then runs
// the hooks of tx.
func (l *Ledger) deliver(tx *Tx, err error) {
	l.hookMu.Lock()
	for l.delivered != tx.seq-1 {
		l.hookCond.Wait()
	}
	l.hookMu.Unlock()

	defer func() {
		l.hookMu.Lock()
		l.delivered = tx.seq
		l.hookCond.Broadcast()
		l.hookMu.Unlock()
	}()
	hooks := tx.hooks
	if err != nil {
		hooks = tx.rollbackHooks
	}
	for _, hook := range hooks {
		hook()
	}
}

// View runs fn with a read-only view of the ledger.
func (l *Ledger) View(fn func(tx *Tx)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(&Tx{ledger: l, now: l.clock.Now(), readOnly: true})
}
