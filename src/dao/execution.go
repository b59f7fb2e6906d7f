package dao

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Call is one step of an execution: value and payload sent to target.
type Call struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// Descriptor is the ordered batch a proposal commits to. The disambiguator
// lets otherwise identical batches exist as separate proposals.
type Descriptor struct {
	Calls         []Call
	Disambiguator *big.Int
}

// ProposalID is the keccak256 digest of a descriptor's canonical encoding.
type ProposalID [32]byte

// Hex returns the 0x-prefixed hex form.
func (id ProposalID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id ProposalID) String() string {
	return id.Hex()
}

// Big returns the id as the uint256 used in signed ballots.
func (id ProposalID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// IsZero reports whether id is unset.
func (id ProposalID) IsZero() bool {
	return id == ProposalID{}
}

func (id ProposalID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *ProposalID) UnmarshalText(text []byte) error {
	parsed, err := ParseProposalID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseProposalID accepts a 32-byte hex string, with or without 0x.
func ParseProposalID(s string) (ProposalID, error) {
	var id ProposalID
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return id, fmt.Errorf("proposal id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("proposal id %q: want %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// ProposalIDFromBig converts the uint256 form back into an id.
func ProposalIDFromBig(v *big.Int) (ProposalID, error) {
	var id ProposalID
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return id, fmt.Errorf("proposal id %v out of range", v)
	}
	v.FillBytes(id[:])
	return id, nil
}

var descriptorArgs = abi.Arguments{
	{Name: "targets", Type: mustType("address[]")},
	{Name: "values", Type: mustType("uint256[]")},
	{Name: "calldatas", Type: mustType("bytes[]")},
	{Name: "disambiguator", Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func uint256(v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s is not a uint256", ErrInvalidDescriptor, v)
	}
	return v, nil
}

// columns splits the descriptor into the parallel arrays of its encoding.
func (d Descriptor) columns() ([]common.Address, []*big.Int, [][]byte, *big.Int, error) {
	targets := make([]common.Address, len(d.Calls))
	values := make([]*big.Int, len(d.Calls))
	payloads := make([][]byte, len(d.Calls))
	for i, c := range d.Calls {
		v, err := uint256(c.Value)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("call %d: %w", i, err)
		}
		targets[i] = c.Target
		values[i] = v
		payloads[i] = c.Payload
		if payloads[i] == nil {
			payloads[i] = []byte{}
		}
	}
	disambiguator, err := uint256(d.Disambiguator)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("disambiguator: %w", err)
	}
	return targets, values, payloads, disambiguator, nil
}

// Encode returns the canonical encoding: the ABI encoding of
// (address[] targets, uint256[] values, bytes[] calldatas, uint256 disambiguator).
func (d Descriptor) Encode() ([]byte, error) {
	targets, values, payloads, disambiguator, err := d.columns()
	if err != nil {
		return nil, err
	}
	return descriptorArgs.Pack(targets, values, payloads, disambiguator)
}

// DeriveID computes the proposal identity of d. It fails only for values
// that do not fit a uint256.
func DeriveID(d Descriptor) (ProposalID, error) {
	var id ProposalID
	enc, err := d.Encode()
	if err != nil {
		return id, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(enc)
	h.Sum(id[:0])
	return id, nil
}

// Equal reports whether d and other derive the same identity.
func (d Descriptor) Equal(other Descriptor) bool {
	a, errA := d.Encode()
	b, errB := other.Encode()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func descriptorFromColumns(targets []common.Address, values []*big.Int, payloads [][]byte, disambiguator *big.Int) (Descriptor, error) {
	if len(targets) != len(values) || len(targets) != len(payloads) {
		return Descriptor{}, fmt.Errorf("%d targets, %d values, %d payloads: %w",
			len(targets), len(values), len(payloads), ErrLengthMismatch)
	}
	d := Descriptor{Calls: make([]Call, len(targets)), Disambiguator: disambiguator}
	for i := range targets {
		d.Calls[i] = Call{Target: targets[i], Value: values[i], Payload: payloads[i]}
	}
	return d, nil
}
