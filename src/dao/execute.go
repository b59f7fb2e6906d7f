package dao

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/membership-dao/src/dao/chain"
)

// engineABI is the interface the engine exposes to calls routed to its own
// address.
var engineABI = chain.MustParseABI(`[
	{"type":"function","name":"execute","stateMutability":"payable","inputs":[
		{"name":"targets","type":"address[]"},
		{"name":"values","type":"uint256[]"},
		{"name":"calldatas","type":"bytes[]"},
		{"name":"disambiguator","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"buyNft","stateMutability":"nonpayable","inputs":[
		{"name":"nftContract","type":"address"},
		{"name":"tokenId","type":"uint256"},
		{"name":"maxPrice","type":"uint256"}],"outputs":[]}
]`)

// marketplaceABI is the part of the NFT market the engine relies on.
var marketplaceABI = chain.MustParseABI(`[
	{"type":"function","name":"getPrice","stateMutability":"view","inputs":[
		{"name":"nftContract","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"buy","stateMutability":"payable","inputs":[
		{"name":"nftContract","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`)

// ExecutePayload encodes an execute call for d, for routing execution
// through the ledger.
func ExecutePayload(d Descriptor) ([]byte, error) {
	targets, values, payloads, disambiguator, err := d.columns()
	if err != nil {
		return nil, err
	}
	return chain.Pack(engineABI, "execute", targets, values, payloads, disambiguator)
}

// BuyNFTPayload encodes the engine's buyNft action. It is meant to be a
// call of a proposal targeting the engine itself.
func BuyNFTPayload(nft common.Address, tokenID, maxPrice *big.Int) ([]byte, error) {
	return chain.Pack(engineABI, "buyNft", nft, tokenID, maxPrice)
}

// Execute runs the batch of a passed proposal. The identity is re-derived
// from d so the batch is exactly what was voted on. Either every call
// succeeds or nothing changes; a failed attempt leaves the proposal passed
// and executable again.
func (e *Engine) Execute(ctx context.Context, caller common.Address, d Descriptor) error {
	err := e.ledger.Transact(func(tx *chain.Tx) error {
		return e.execute(ctx, tx, caller, d)
	})
	e.finish("execute", err, caller)
	return err
}

func (e *Engine) execute(ctx context.Context, tx *chain.Tx, caller common.Address, d Descriptor) error {
	id, err := DeriveID(d)
	if err != nil {
		return err
	}
	p, ok := e.proposals.Get(id)
	if !ok {
		return ErrNotFound
	}
	switch st := e.opts.Rules.Resolve(p, tx.Now()); st {
	case StatusPassed:
	case StatusExecuted:
		return ErrAlreadyExecuted
	default:
		return fmt.Errorf("%w: status is %s", ErrNotPassed, st)
	}
	if !e.members.IsMemberAsOf(caller, p.CreatedAt) {
		return fmt.Errorf("%w: %s", ErrIneligibleExecutor, caller.Hex())
	}

	// Marked before dispatch so a call that re-enters execute sees it.
	tx.Journal(func() { p.Executed = false })
	p.Executed = true
	for i, c := range d.Calls {
		if _, err := tx.Invoke(e.opts.Address, c.Target, c.Value, c.Payload); err != nil {
			execErr := &ExecutionError{Index: i, Target: c.Target, Err: err}
			ev := proposalEvent(EventExecutionFailed, p, StatusPassed, caller, tx.Now())
			ev.Error = execErr.Error()
			tx.OnRollback(func() { e.notify(ctx, ev) })
			return execErr
		}
	}
	e.emit(ctx, tx, proposalEvent(EventProposalExecuted, p, StatusExecuted, caller, tx.Now()))
	return nil
}

// Call implements chain.Contract. Plain transfers fund the treasury;
// execute may be reached by anyone; buyNft only by the engine itself.
func (e *Engine) Call(cc *chain.CallContext, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	method, args, err := chain.Decode(engineABI, payload)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "execute":
		d, err := descriptorFromColumns(
			args[0].([]common.Address), args[1].([]*big.Int), args[2].([][]byte), args[3].(*big.Int))
		if err != nil {
			return nil, err
		}
		return nil, e.execute(context.Background(), cc.Tx, cc.Caller, d)
	case "buyNft":
		if cc.Caller != e.opts.Address {
			return nil, ErrUnauthorized
		}
		if err := cc.RequireNoValue(); err != nil {
			return nil, err
		}
		return nil, e.buyNFT(cc, args[0].(common.Address), args[1].(*big.Int), args[2].(*big.Int))
	}
	return nil, fmt.Errorf("%s: %w", method.Name, chain.ErrUnknownMethod)
}

// BuyNFT is the direct entry point of the buyNft action. Only the engine's
// own dispatch may use it, so any external caller gets ErrUnauthorized.
func (e *Engine) BuyNFT(ctx context.Context, caller, nft common.Address, tokenID, maxPrice *big.Int) error {
	payload, err := BuyNFTPayload(nft, tokenID, maxPrice)
	if err == nil {
		_, err = e.ledger.Send(caller, e.opts.Address, nil, payload)
	}
	e.finish("buy_nft", err, caller)
	return err
}

// buyNFT buys tokenID from the marketplace with treasury funds, provided
// the asking price at execution time is within maxPrice.
func (e *Engine) buyNFT(cc *chain.CallContext, nft common.Address, tokenID, maxPrice *big.Int) error {
	query, err := chain.Pack(marketplaceABI, "getPrice", nft, tokenID)
	if err != nil {
		return err
	}
	out, err := cc.Call(e.opts.Marketplace, nil, query)
	if err != nil {
		return fmt.Errorf("query price: %w", err)
	}
	vals, err := chain.Unpack(marketplaceABI, "getPrice", out)
	if err != nil {
		return fmt.Errorf("decode price: %w", err)
	}
	price := vals[0].(*big.Int)
	if price.Cmp(maxPrice) > 0 {
		return fmt.Errorf("%w: asking %s, cap %s", ErrPriceAboveCap, price, maxPrice)
	}

	buy, err := chain.Pack(marketplaceABI, "buy", nft, tokenID)
	if err != nil {
		return err
	}
	if _, err := cc.Call(e.opts.Marketplace, price, buy); err != nil {
		return fmt.Errorf("buy token %s: %w", tokenID, err)
	}
	return nil
}
