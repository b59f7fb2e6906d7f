package targets

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/membership-dao/src/dao/chain"
)

var NFTABI = chain.MustParseABI(`[
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[
		{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"","type":"address"}]}
]`)

// NFT is a minimal non-fungible token collection with per-token approvals.
type NFT struct {
	ledger *chain.Ledger
	Name   string
	Symbol string

	lastID    uint64
	owners    map[uint64]common.Address
	approvals map[uint64]common.Address
}

func DeployNFT(l *chain.Ledger, addr common.Address, name, symbol string) (*NFT, error) {
	n := &NFT{
		ledger:    l,
		Name:      name,
		Symbol:    symbol,
		owners:    make(map[uint64]common.Address),
		approvals: make(map[uint64]common.Address),
	}
	if err := l.Deploy(addr, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Mint creates the next token for to and returns its id.
func (n *NFT) Mint(to common.Address) (*big.Int, error) {
	var id uint64
	err := n.ledger.Transact(func(tx *chain.Tx) error {
		prev := n.lastID
		tx.Journal(func() { n.lastID = prev })
		n.lastID++
		id = n.lastID
		chain.JournalKey(tx, n.owners, id)
		n.owners[id] = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(id), nil
}

// Approve lets operator transfer tokenID on owner's behalf.
func (n *NFT) Approve(owner, operator common.Address, tokenID *big.Int) error {
	return n.ledger.Transact(func(tx *chain.Tx) error {
		key, err := tokenKey(tokenID)
		if err != nil {
			return err
		}
		current, err := n.ownerOf(key)
		if err != nil {
			return err
		}
		if current != owner {
			return fmt.Errorf("approve token %d: %w", key, ErrNotOwner)
		}
		chain.JournalKey(tx, n.approvals, key)
		n.approvals[key] = operator
		return nil
	})
}

// OwnerOf returns the holder of tokenID.
func (n *NFT) OwnerOf(tokenID *big.Int) (common.Address, error) {
	var (
		owner common.Address
		err   error
	)
	n.ledger.View(func(*chain.Tx) {
		var key uint64
		if key, err = tokenKey(tokenID); err == nil {
			owner, err = n.ownerOf(key)
		}
	})
	return owner, err
}

func (n *NFT) ownerOf(key uint64) (common.Address, error) {
	owner, ok := n.owners[key]
	if !ok {
		return common.Address{}, fmt.Errorf("token %d: %w", key, ErrNonexistentToken)
	}
	return owner, nil
}

func (n *NFT) Call(cc *chain.CallContext, payload []byte) ([]byte, error) {
	method, args, err := chain.Decode(NFTABI, payload)
	if err != nil {
		return nil, err
	}
	if err := cc.RequireNoValue(); err != nil {
		return nil, err
	}
	key, err := tokenKey(args[len(args)-1].(*big.Int))
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "ownerOf":
		owner, err := n.ownerOf(key)
		if err != nil {
			return nil, err
		}
		return chain.Return(NFTABI, "ownerOf", owner)
	case "transferFrom":
		from, to := args[0].(common.Address), args[1].(common.Address)
		owner, err := n.ownerOf(key)
		if err != nil {
			return nil, err
		}
		if owner != from {
			return nil, fmt.Errorf("transfer token %d: %w", key, ErrNotOwner)
		}
		if cc.Caller != owner && n.approvals[key] != cc.Caller {
			return nil, fmt.Errorf("transfer token %d: %w", key, ErrNotApproved)
		}
		chain.JournalKey(cc.Tx, n.owners, key)
		chain.JournalKey(cc.Tx, n.approvals, key)
		n.owners[key] = to
		delete(n.approvals, key)
		return nil, nil
	}
	return nil, fmt.Errorf("%s: %w", method.Name, chain.ErrUnknownMethod)
}
