// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

var (
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

const (
	DefaultConfirmationTime = 60 * time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultMaxSendElapsed   = 15 * time.Second
)

type Config struct {
	ConfirmationTime time.Duration
	PollInterval     time.Duration
	MaxSendElapsed   time.Duration
	Commitment       rpc.CommitmentType
}

func (c Config) withDefaults() Config {
	if c.ConfirmationTime <= 0 {
		c.ConfirmationTime = DefaultConfirmationTime
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxSendElapsed <= 0 {
		c.MaxSendElapsed = DefaultMaxSendElapsed
	}
	if c.Commitment == "" {
		c.Commitment = rpc.CommitmentConfirmed
	}
	return c
}

// ExecuteOptions controls a single SendAndConfirm call.
type ExecuteOptions struct {
	// Simulate runs a pre-flight simulation and aborts on failure.
	Simulate bool
	// SkipPreflight disables the node's own pre-flight check.
	SkipPreflight bool
	// Commitment to wait for; the manager default is used when empty.
	Commitment rpc.CommitmentType
	// AddressTables compiles the message as v0 against these lookup tables.
	AddressTables map[solana.PublicKey]solana.PublicKeySlice
	// Signers are extra keypairs besides the payer (e.g. a fresh mint).
	Signers []solana.PrivateKey
	// Label names the transaction in logs and metrics.
	Label string
}

type Status struct {
	Signature     solana.Signature
	Result        blockchain.ConfirmationStatus
	Confirmations uint64
	Slot          uint64
	Err           interface{}
	Timestamp     time.Time
}
