package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MustParseABI parses a JSON ABI definition and panics on error. It is
// meant for package-level contract interface definitions.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// Decode resolves the method selected by payload and unpacks its inputs.
func Decode(contract abi.ABI, payload []byte) (*abi.Method, []any, error) {
	if len(payload) < 4 {
		return nil, nil, fmt.Errorf("payload of %d bytes: %w", len(payload), ErrUnknownMethod)
	}
	method, err := contract.MethodById(payload[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("selector %x: %w", payload[:4], ErrUnknownMethod)
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method, args, nil
}

// Pack encodes a call to the named method.
func Pack(contract abi.ABI, name string, args ...any) ([]byte, error) {
	return contract.Pack(name, args...)
}

// Return encodes the outputs of the named method.
func Return(contract abi.ABI, name string, values ...any) ([]byte, error) {
	method, ok := contract.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownMethod)
	}
	return method.Outputs.Pack(values...)
}

// Unpack decodes the outputs of the named method.
func Unpack(contract abi.ABI, name string, data []byte) ([]any, error) {
	return contract.Unpack(name, data)
}
