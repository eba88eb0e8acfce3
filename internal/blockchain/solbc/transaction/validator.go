// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// MaxTransactionSize is the serialized size ceiling of a ledger transaction.
const MaxTransactionSize = 1232

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if err := v.ValidateSignatures(tx); err != nil {
		return err
	}

	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}

	if err := v.ValidateInstructions(tx.Message.Instructions); err != nil {
		return err
	}

	return v.ValidateSize(tx)
}

func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) == 0 || len(tx.Signatures) != required {
		return ErrInvalidSignature
	}
	for _, sig := range tx.Signatures {
		if sig == (solana.Signature{}) {
			return ErrInvalidSignature
		}
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}

// ValidateSize rejects transactions the ledger would refuse as oversized.
func (v *Validator) ValidateSize(tx *solana.Transaction) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize transaction: %w", err)
	}
	if len(raw) > MaxTransactionSize {
		v.logger.Debug("Transaction too large", zap.Int("size", len(raw)))
		return fmt.Errorf("transaction too large: %d bytes > %d", len(raw), MaxTransactionSize)
	}
	return nil
}
