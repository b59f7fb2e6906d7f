package dao

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Authorization failures.
var (
	ErrNotAMember         = errors.New("not a member")
	ErrNotProposer        = errors.New("not the proposer")
	ErrIneligibleVoter    = errors.New("voter was not a member before the proposal was created")
	ErrIneligibleExecutor = errors.New("executor was not a member before the proposal was created")
	ErrUnauthorized       = errors.New("unauthorized")
)

// State failures.
var (
	ErrDuplicateProposal = errors.New("proposal already exists")
	ErrNotFound          = errors.New("proposal not found")
	ErrNotOngoing        = errors.New("proposal voting is not ongoing")
	ErrNotPassed         = errors.New("proposal has not passed")
	ErrAlreadyExecuted   = errors.New("proposal already executed")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrAlreadyMember     = errors.New("already a member")
)

// Input failures.
var (
	ErrWrongAmount       = errors.New("wrong membership payment")
	ErrEmptyExecution    = errors.New("execution has no calls")
	ErrLengthMismatch    = errors.New("argument lengths differ")
	ErrBadSignature      = errors.New("bad signature")
	ErrInvalidChoice     = errors.New("invalid vote choice")
	ErrInvalidDescriptor = errors.New("invalid execution descriptor")
)

// ErrPriceAboveCap aborts a purchase whose asking price rose above the cap
// the members voted for.
var ErrPriceAboveCap = errors.New("price above cap")

// ErrorKind groups errors for callers that map them onto another surface,
// such as HTTP status codes or metric labels.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthorization
	KindState
	KindInput
	KindExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindInput:
		return "input"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

var kinds = map[error]ErrorKind{
	ErrNotAMember:         KindAuthorization,
	ErrNotProposer:        KindAuthorization,
	ErrIneligibleVoter:    KindAuthorization,
	ErrIneligibleExecutor: KindAuthorization,
	ErrUnauthorized:       KindAuthorization,
	ErrDuplicateProposal:  KindState,
	ErrNotFound:           KindState,
	ErrNotOngoing:         KindState,
	ErrNotPassed:          KindState,
	ErrAlreadyExecuted:    KindState,
	ErrAlreadyVoted:       KindState,
	ErrAlreadyMember:      KindState,
	ErrWrongAmount:        KindInput,
	ErrEmptyExecution:     KindInput,
	ErrLengthMismatch:     KindInput,
	ErrBadSignature:       KindInput,
	ErrInvalidChoice:      KindInput,
	ErrInvalidDescriptor:  KindInput,
}

// Kind classifies err. A failed sub-call of an execution is KindExecution
// whatever its cause.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return KindExecution
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// ExecutionError reports which call of a batch failed. The whole batch has
// been rolled back when it is returned.
type ExecutionError struct {
	Index  int
	Target common.Address
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("call %d to %s: %v", e.Index, e.Target.Hex(), e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// BallotError reports which entry of a ballot batch was rejected.
type BallotError struct {
	Index int
	Err   error
}

func (e *BallotError) Error() string {
	return fmt.Sprintf("ballot %d: %v", e.Index, e.Err)
}

func (e *BallotError) Unwrap() error {
	return e.Err
}
