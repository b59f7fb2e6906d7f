// Package targets holds reference contracts a proposal can call: a
// counter, an NFT collection and a fixed-price NFT marketplace.
package targets

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/stake-plus/membership-dao/src/dao/chain"
)

var (
	ErrNonexistentToken = errors.New("nonexistent token")
	ErrNotOwner         = errors.New("not the token owner")
	ErrNotApproved      = errors.New("caller is not owner nor approved")
	ErrNotListed        = errors.New("token not listed")
	ErrWrongPrice       = errors.New("payment does not match price")
)

func mustPack(contract abi.ABI, name string, args ...any) []byte {
	payload, err := chain.Pack(contract, name, args...)
	if err != nil {
		panic(fmt.Sprintf("pack %s: %v", name, err))
	}
	return payload
}

func tokenKey(id *big.Int) (uint64, error) {
	if id == nil || id.Sign() < 0 || !id.IsUint64() {
		return 0, fmt.Errorf("token %v: %w", id, ErrNonexistentToken)
	}
	return id.Uint64(), nil
}
