package staking

import (
	"errors"
	"fmt"
)

var (
	// ErrUserRejected - the wallet's owner declined the signature request.
	// Terminal for the operation, never retried.
	ErrUserRejected = errors.New("user rejected the signing request")

	// ErrNoProgramMetadata - instruction layout for the program couldn't be
	// determined locally; intents are flagged for remote construction instead.
	ErrNoProgramMetadata = errors.New("program interface metadata unavailable locally")
)

// InvalidAmountError - caller misuse, raised before any ledger interaction.
type InvalidAmountError struct {
	Op     string
	Amount uint64
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d for %s: %s", e.Amount, e.Op, e.Reason)
}

// InvalidSeedError - a malformed seed label or key part was passed to
// address derivation. Pure computation failure, no retry.
type InvalidSeedError struct {
	Label  string
	Reason string
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed for label %q: %s", e.Label, e.Reason)
}

// TransientSubmissionError - a network or simulation level failure that was
// worth retrying locally. Carries the underlying cause for the caller.
type TransientSubmissionError struct {
	Stage string
	Err   error
}

func (e *TransientSubmissionError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Stage, e.Err)
}

func (e *TransientSubmissionError) Unwrap() error { return e.Err }

// SubmissionRejectedError - the node refused the transaction outright and
// retrying the same payload cannot help. Carries the RPC detail verbatim.
type SubmissionRejectedError struct {
	Err error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %v", e.Err)
}

func (e *SubmissionRejectedError) Unwrap() error { return e.Err }

// OnChainExecutionError - the transaction landed on chain but the program
// reported failure. The program's error payload is preserved verbatim -
// "landed" and "succeeded" are different outcomes.
type OnChainExecutionError struct {
	Signature string
	Detail    any
}

func (e *OnChainExecutionError) Error() string {
	return fmt.Sprintf("transaction %s confirmed but program reported error: %v", e.Signature, e.Detail)
}

// RemoteFallbackError - the remote staking API itself failed. Terminal, no
// further fallback, surfaced verbatim.
type RemoteFallbackError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteFallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote fallback for %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote fallback for %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *RemoteFallbackError) Unwrap() error { return e.Err }
