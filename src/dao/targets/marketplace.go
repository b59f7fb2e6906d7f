package targets

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stake-plus/membership-dao/src/dao/chain"
)

var MarketplaceABI = chain.MustParseABI(`[
	{"type":"function","name":"list","stateMutability":"nonpayable","inputs":[
		{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getPrice","stateMutability":"view","inputs":[
		{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"buy","stateMutability":"payable","inputs":[
		{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`)

type listingKey struct {
	nft common.Address
	id  uint64
}

type listing struct {
	seller common.Address
	price  *big.Int
}

// Marketplace sells NFTs at a fixed price set by their owner. Listing
// again replaces the price.
type Marketplace struct {
	ledger   *chain.Ledger
	addr     common.Address
	listings map[listingKey]listing
}

func DeployMarketplace(l *chain.Ledger, addr common.Address) (*Marketplace, error) {
	m := &Marketplace{ledger: l, addr: addr, listings: make(map[listingKey]listing)}
	if err := l.Deploy(addr, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Address is where the marketplace is deployed.
func (m *Marketplace) Address() common.Address {
	return m.addr
}

// List offers tokenID of nft for price. seller must own the token and have
// approved the marketplace for the sale to settle.
func (m *Marketplace) List(seller, nft common.Address, tokenID, price *big.Int) error {
	payload, err := chain.Pack(MarketplaceABI, "list", nft, tokenID, price)
	if err != nil {
		return err
	}
	_, err = m.ledger.Send(seller, m.addr, nil, payload)
	return err
}

// Price returns the asking price of a listed token.
func (m *Marketplace) Price(nft common.Address, tokenID *big.Int) (*big.Int, error) {
	var (
		price *big.Int
		err   error
	)
	m.ledger.View(func(*chain.Tx) {
		var l listing
		if l, err = m.listing(nft, tokenID); err == nil {
			price = new(big.Int).Set(l.price)
		}
	})
	return price, err
}

func (m *Marketplace) listing(nft common.Address, tokenID *big.Int) (listing, error) {
	key, err := tokenKey(tokenID)
	if err != nil {
		return listing{}, err
	}
	l, ok := m.listings[listingKey{nft: nft, id: key}]
	if !ok {
		return listing{}, fmt.Errorf("%s #%d: %w", nft.Hex(), key, ErrNotListed)
	}
	return l, nil
}

func (m *Marketplace) Call(cc *chain.CallContext, payload []byte) ([]byte, error) {
	method, args, err := chain.Decode(MarketplaceABI, payload)
	if err != nil {
		return nil, err
	}
	nft, tokenID := args[0].(common.Address), args[1].(*big.Int)
	switch method.Name {
	case "list":
		if err := cc.RequireNoValue(); err != nil {
			return nil, err
		}
		return nil, m.list(cc, nft, tokenID, args[2].(*big.Int))
	case "getPrice":
		l, err := m.listing(nft, tokenID)
		if err != nil {
			return nil, err
		}
		return chain.Return(MarketplaceABI, "getPrice", new(big.Int).Set(l.price))
	case "buy":
		return nil, m.buy(cc, nft, tokenID)
	}
	return nil, fmt.Errorf("%s: %w", method.Name, chain.ErrUnknownMethod)
}

func (m *Marketplace) list(cc *chain.CallContext, nft common.Address, tokenID, price *big.Int) error {
	key, err := tokenKey(tokenID)
	if err != nil {
		return err
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("list %s #%d: %w", nft.Hex(), key, ErrWrongPrice)
	}
	query, err := chain.Pack(NFTABI, "ownerOf", tokenID)
	if err != nil {
		return err
	}
	out, err := cc.Call(nft, nil, query)
	if err != nil {
		return err
	}
	vals, err := chain.Unpack(NFTABI, "ownerOf", out)
	if err != nil {
		return err
	}
	if vals[0].(common.Address) != cc.Caller {
		return fmt.Errorf("list %s #%d: %w", nft.Hex(), key, ErrNotOwner)
	}
	lk := listingKey{nft: nft, id: key}
	chain.JournalKey(cc.Tx, m.listings, lk)
	m.listings[lk] = listing{seller: cc.Caller, price: new(big.Int).Set(price)}
	return nil
}

func (m *Marketplace) buy(cc *chain.CallContext, nft common.Address, tokenID *big.Int) error {
	l, err := m.listing(nft, tokenID)
	if err != nil {
		return err
	}
	if cc.Value.Cmp(l.price) != 0 {
		return fmt.Errorf("paid %s, price is %s: %w", cc.Value, l.price, ErrWrongPrice)
	}
	if _, err := cc.Call(l.seller, l.price, nil); err != nil {
		return fmt.Errorf("pay seller: %w", err)
	}
	transfer, err := chain.Pack(NFTABI, "transferFrom", l.seller, cc.Caller, tokenID)
	if err != nil {
		return err
	}
	if _, err := cc.Call(nft, nil, transfer); err != nil {
		return fmt.Errorf("transfer token: %w", err)
	}
	lk := listingKey{nft: nft, id: tokenID.Uint64()}
	chain.JournalKey(cc.Tx, m.listings, lk)
	delete(m.listings, lk)
	return nil
}
