package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var errReadOnly = errors.New("state change in read-only view")

// Contract is code living at a ledger address.
type Contract interface {
	Call(cc *CallContext, payload []byte) ([]byte, error)
}

// Tx is the handle to the ledger inside a transaction. It is only valid
// for the duration of the Transact or View callback.
type Tx struct {
	ledger   *Ledger
	now      time.Time
	readOnly bool
	depth    int
	seq      uint64

	journal       []func()
	hooks         []func()
	rollbackHooks []func()
}

// Now is the block time of the transaction.
func (tx *Tx) Now() time.Time {
	return tx.now
}

// OnCommit registers fn to run after the transaction commits, outside
// the ledger lock. fn may read the ledger but must not start a transaction.
func (tx *Tx) OnCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}

// OnRollback registers fn to run, under the same rules as OnCommit, when
// the transaction fails.
func (tx *Tx) OnRollback(fn func()) {
	tx.rollbackHooks = append(tx.rollbackHooks, fn)
}

// Journal records how to undo a change made in this transaction. Contract
// state that must roll back with a failed transaction is journaled before
// it is changed.
func (tx *Tx) Journal(undo func()) {
	if tx.readOnly {
		return
	}
	tx.journal = append(tx.journal, undo)
}

func (tx *Tx) unwind() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		tx.journal[i]()
	}
	tx.journal = nil
}

// JournalKey journals the current entry of m at k, so a rollback puts it
// back or deletes it if it was absent.
func JournalKey[K comparable, V any](tx *Tx, m map[K]V, k K) {
	prev, had := m[k]
	tx.Journal(func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// BalanceOf returns a copy of addr's balance.
func (tx *Tx) BalanceOf(addr common.Address) *big.Int {
	if bal, ok := tx.ledger.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount from one account to another without running code.
func (tx *Tx) Transfer(from, to common.Address, amount *big.Int) error {
	if tx.readOnly {
		return errReadOnly
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeValue
	}
	bal := tx.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s has %s, needs %s: %w", from.Hex(), bal, amount, ErrInsufficientFunds)
	}
	tx.setBalance(from, bal.Sub(bal, amount))
	return tx.credit(to, amount)
}

func (tx *Tx) credit(addr common.Address, amount *big.Int) error {
	if tx.readOnly {
		return errReadOnly
	}
	if amount.Sign() < 0 {
		return ErrNegativeValue
	}
	bal := tx.BalanceOf(addr)
	tx.setBalance(addr, bal.Add(bal, amount))
	return nil
}

// setBalance stores bal, a fresh value, as addr's balance. Stored balances
// are never mutated in place, so the journal keeps the old pointer.
func (tx *Tx) setBalance(addr common.Address, bal *big.Int) {
	JournalKey(tx, tx.ledger.balances, addr)
	tx.ledger.balances[addr] = bal
}

// Invoke transfers value and runs the code at to, if any. A payload sent to
// an address without code fails with ErrNoContract.
func (tx *Tx) Invoke(from, to common.Address, value *big.Int, payload []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	if err := tx.Transfer(from, to, value); err != nil {
		return nil, err
	}
	c, ok := tx.ledger.contracts[to]
	if !ok {
		if len(payload) > 0 {
			return nil, fmt.Errorf("call %s: %w", to.Hex(), ErrNoContract)
		}
		return nil, nil
	}
	tx.depth++
	defer func() { tx.depth-- }()
	return c.Call(&CallContext{Tx: tx, Caller: from, Self: to, Value: new(big.Int).Set(value)}, payload)
}

// ContractAt returns the contract deployed at addr.
func (tx *Tx) ContractAt(addr common.Address) (Contract, bool) {
	c, ok := tx.ledger.contracts[addr]
	return c, ok
}

// Depth is the current call depth; zero outside any contract.
func (tx *Tx) Depth() int {
	return tx.depth
}

// CallContext is what a contract sees while its code runs.
type CallContext struct {
	*Tx
	Caller common.Address
	Self   common.Address
	Value  *big.Int
}

// Call invokes another address with the running contract as sender.
func (cc *CallContext) Call(to common.Address, value *big.Int, payload []byte) ([]byte, error) {
	return cc.Invoke(cc.Self, to, value, payload)
}

// RequireNoValue fails when value was attached to a non-payable method.
func (cc *CallContext) RequireNoValue() error {
	if cc.Value != nil && cc.Value.Sign() != 0 {
		return ErrNotPayable
	}
	return nil
}
