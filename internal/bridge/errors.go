package bridge

import "errors"

// Structured result codes surfaced to callers. Every failing entry point
// returns one of these (possibly wrapped); none of them leave partial
// state behind.
var (
	// authorization
	ErrUnauthorized = errors.New("caller is not authorized")

	// lifecycle / availability
	ErrContractPaused     = errors.New("contract is paused")
	ErrAlreadyInitialized = errors.New("contract already initialized")
	ErrNotInitialized     = errors.New("contract not initialized")

	// validation
	ErrAmountTooLow = errors.New("amount below configured minimum")
	ErrInvalidProof = errors.New("invalid proof")

	// replay
	ErrNullifierUsed = errors.New("nullifier already used")

	// state consistency
	ErrCommitmentNotFound         = errors.New("commitment not found")
	ErrCommitmentAlreadyProcessed = errors.New("commitment already processed")
	ErrCommitmentExists           = errors.New("commitment already exists")

	// resource
	ErrInsufficientBalance = errors.New("insufficient balance")

	// numeric
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// timing
	ErrTimeoutNotReached = errors.New("refund timeout not reached")
)
