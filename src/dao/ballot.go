package dao

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain scopes ballot signatures to one engine on one network.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// Ballot is the signed payload of a delegated vote.
type Ballot struct {
	ProposalID ProposalID `json:"proposalId"`
	Choice     VoteChoice `json:"vote"`
}

var ballotTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Ballot": {
		{Name: "proposalId", Type: "uint256"},
		{Name: "vote", Type: "uint8"},
	},
}

// TypedData is the EIP-712 document a wallet signs for b.
func (d Domain) TypedData(b Ballot) apitypes.TypedData {
	chainID := new(big.Int)
	if d.ChainID != nil {
		chainID.Set(d.ChainID)
	}
	return apitypes.TypedData{
		Types:       ballotTypes,
		PrimaryType: "Ballot",
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"proposalId": b.ProposalID.Big().String(),
			"vote":       strconv.Itoa(int(b.Choice)),
		},
	}
}

// BallotHash is the EIP-712 digest of b under d.
func (d Domain) BallotHash(b Ballot) (common.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(d.TypedData(b))
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash ballot: %w", err)
	}
	return common.BytesToHash(hash), nil
}

// RecoverBallotSigner returns the account that signed b under d. sig is
// r || s || v with v in {0, 1, 27, 28}. Malformed, malleable or
// non-recovering signatures fail with ErrBadSignature.
func RecoverBallotSigner(d Domain, b Ballot, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrBadSignature, len(sig))
	}
	hash, err := d.BallotHash(b)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	norm := make([]byte, len(sig))
	copy(norm, sig)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	r := new(big.Int).SetBytes(norm[:32])
	s := new(big.Int).SetBytes(norm[32:64])
	if !crypto.ValidateSignatureValues(norm[64], r, s, true) {
		return common.Address{}, fmt.Errorf("%w: invalid r, s, v", ErrBadSignature)
	}

	pub, err := crypto.SigToPub(hash.Bytes(), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero signer", ErrBadSignature)
	}
	return signer, nil
}

// SignBallot produces the r || s || v signature (v in {27, 28}) a wallet
// would return for b.
func SignBallot(d Domain, b Ballot, key *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := d.BallotHash(b)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign ballot: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
