// internal/blockchain/solbc/transaction/monitor.go
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

type Monitor struct {
	client blockchain.Client
	logger *zap.Logger
	config Config
}

func NewMonitor(client blockchain.Client, logger *zap.Logger, config Config) *Monitor {
	return &Monitor{
		client: client,
		logger: logger.Named("tx-monitor"),
		config: config.withDefaults(),
	}
}

// reached reports whether status satisfies the requested commitment.
func reached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	switch commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// GetTransactionStatus returns a single snapshot of the signature status.
func (m *Monitor) GetTransactionStatus(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (*Status, error) {
	response, err := m.client.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction status: %w", err)
	}

	txStatus := &Status{
		Signature: signature,
		Result:    blockchain.ConfirmationUnknown,
		Timestamp: time.Now(),
	}
	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return txStatus, nil
	}

	status := response.Value[0]
	txStatus.Slot = status.Slot
	if status.Confirmations != nil {
		txStatus.Confirmations = *status.Confirmations
	}

	// Ошибка исполнения окончательна на любом уровне commitment.
	if status.Err != nil {
		txStatus.Err = status.Err
		txStatus.Result = blockchain.ConfirmationFailed
		return txStatus, nil
	}
	if reached(status.ConfirmationStatus, commitment) {
		txStatus.Result = blockchain.ConfirmationConfirmed
	}
	return txStatus, nil
}

// AwaitConfirmation polls until the signature reaches commitment, fails, or
// the confirmation window closes. A closed window yields ConfirmationUnknown,
// never a failure.
func (m *Monitor) AwaitConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) (*Status, error) {
	if commitment == "" {
		commitment = m.config.Commitment
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	deadline := time.After(m.config.ConfirmationTime)

	for {
		select {
		case <-ctx.Done():
			return &Status{Signature: signature, Result: blockchain.ConfirmationUnknown, Timestamp: time.Now()}, ctx.Err()
		case <-deadline:
			m.logger.Warn("Confirmation window closed",
				zap.String("signature", signature.String()),
				zap.String("commitment", string(commitment)),
				zap.Duration("waited", m.config.ConfirmationTime))
			return &Status{Signature: signature, Result: blockchain.ConfirmationUnknown, Timestamp: time.Now()}, nil
		case <-ticker.C:
			status, err := m.GetTransactionStatus(ctx, signature, commitment)
			if err != nil {
				m.logger.Warn("Confirmation check failed", zap.Error(err))
				continue
			}
			if status.Result != blockchain.ConfirmationUnknown {
				return status, nil
			}
		}
	}
}
