package targets

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/membership-dao/src/dao/chain"
)

var CounterABI = chain.MustParseABI(`[
	{"type":"function","name":"increment","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"incrementBy","stateMutability":"nonpayable","inputs":[{"name":"by","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"num","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`)

// Counter is a number anyone can increase.
type Counter struct {
	ledger *chain.Ledger
	num    *big.Int
}

func DeployCounter(l *chain.Ledger, addr common.Address) (*Counter, error) {
	c := &Counter{ledger: l, num: new(big.Int)}
	if err := l.Deploy(addr, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Num returns the current value.
func (c *Counter) Num() *big.Int {
	var out *big.Int
	c.ledger.View(func(*chain.Tx) {
		out = new(big.Int).Set(c.num)
	})
	return out
}

func (c *Counter) Call(cc *chain.CallContext, payload []byte) ([]byte, error) {
	method, args, err := chain.Decode(CounterABI, payload)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "num":
		return chain.Return(CounterABI, "num", new(big.Int).Set(c.num))
	case "increment":
		if err := cc.RequireNoValue(); err != nil {
			return nil, err
		}
		c.add(cc.Tx, big.NewInt(1))
		return nil, nil
	case "incrementBy":
		if err := cc.RequireNoValue(); err != nil {
			return nil, err
		}
		c.add(cc.Tx, args[0].(*big.Int))
		return nil, nil
	}
	return nil, fmt.Errorf("%s: %w", method.Name, chain.ErrUnknownMethod)
}

func (c *Counter) add(tx *chain.Tx, by *big.Int) {
	prev := c.num
	tx.Journal(func() { c.num = prev })
	c.num = new(big.Int).Add(prev, by)
}

// IncrementPayload encodes increment().
func IncrementPayload() []byte {
	return mustPack(CounterABI, "increment")
}

// IncrementByPayload encodes incrementBy(by).
func IncrementByPayload(by uint64) []byte {
	return mustPack(CounterABI, "incrementBy", new(big.Int).SetUint64(by))
}
