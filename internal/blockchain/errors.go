// internal/blockchain/errors.go
package blockchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is the only signal that an account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// ErrInsufficientFunds: a balance check before submission failed.
var ErrInsufficientFunds = errors.New("insufficient funds")

// AccountFetchError is a failed ledger read. It never means "absent" and is
// safe to retry.
type AccountFetchError struct {
	Address solana.PublicKey
	Err     error
}

func (e *AccountFetchError) Error() string {
	return fmt.Sprintf("failed to fetch account %s: %v", e.Address, e.Err)
}

func (e *AccountFetchError) Unwrap() error {
	return e.Err
}

// IsAccountFetchError reports whether err is a transient read failure.
func IsAccountFetchError(err error) bool {
	var fetchErr *AccountFetchError
	return errors.As(err, &fetchErr)
}

// SimulationError is a pre-flight rejection. Nothing reached the ledger.
type SimulationError struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
	// Rejection is set when the logs carry a program error code.
	Rejection *ProgramRejection
}

func (e *SimulationError) Error() string {
	if e.Rejection != nil {
		return fmt.Sprintf("simulation failed: %v", e.Rejection)
	}
	return fmt.Sprintf("simulation failed: %v", e.Err)
}

func (e *SimulationError) Unwrap() error {
	if e.Rejection != nil {
		return e.Rejection
	}
	return nil
}

// SubmissionError is returned when the node refused the transaction.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ProgramRejection is an instruction that executed and returned an error.
type ProgramRejection struct {
	Signature        solana.Signature
	InstructionIndex int
	Code             int
	Name             string
	Message          string
	Raw              interface{}
}

func (e *ProgramRejection) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("program rejected instruction %d: %s (%d): %s", e.InstructionIndex, e.Name, e.Code, e.Message)
	case e.Code != 0:
		return fmt.Sprintf("program rejected instruction %d: custom error %d (0x%x)", e.InstructionIndex, e.Code, e.Code)
	default:
		return fmt.Sprintf("program rejected transaction: %v", e.Raw)
	}
}

// ConfirmationUnknownError means the transaction was submitted but its fate is
// not known. The caller must re-read ledger state before retrying.
type ConfirmationUnknownError struct {
	Signature  solana.Signature
	Commitment rpc.CommitmentType
	Waited     time.Duration
	Err        error
}

func (e *ConfirmationUnknownError) Error() string {
	msg := fmt.Sprintf("confirmation of %s at %s unknown after %s", e.Signature, e.Commitment, e.Waited)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfirmationUnknownError) Unwrap() error {
	return e.Err
}
