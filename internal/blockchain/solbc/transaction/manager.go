// internal/blockchain/solbc/transaction/manager.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc"
	logutil "github.com/rovshanmuradov/pump-meteora/internal/utils/logger"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
)

// Signer signs a transaction with the payer key and any extra keys.
type Signer interface {
	SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error
}

type Manager struct {
	client    blockchain.Client
	payer     solana.PublicKey
	signer    Signer
	logger    *zap.Logger
	config    Config
	validator *Validator
	monitor   *Monitor
	analyzer  *solbc.ErrorAnalyzer
	metrics   *metrics.Collector
}

func NewManager(
	client blockchain.Client,
	payer solana.PublicKey,
	signer Signer,
	logger *zap.Logger,
	config Config,
	collector *metrics.Collector,
) *Manager {
	config = config.withDefaults()
	return &Manager{
		client:    client,
		payer:     payer,
		signer:    signer,
		logger:    logger.Named("tx-manager"),
		config:    config,
		validator: NewValidator(logger),
		monitor:   NewMonitor(client, logger, config),
		analyzer:  solbc.NewErrorAnalyzer(logger),
		metrics:   collector,
	}
}

// Payer returns the fee payer of every transaction built by the manager.
func (tm *Manager) Payer() solana.PublicKey {
	return tm.payer
}

// Build compiles, signs and validates a transaction. With address tables the
// message is compiled as v0.
func (tm *Manager) Build(ctx context.Context, instructions []solana.Instruction, opts ExecuteOptions) (*solana.Transaction, error) {
	blockhash, err := tm.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	txOpts := []solana.TransactionOption{solana.TransactionPayer(tm.payer)}
	if len(opts.AddressTables) > 0 {
		txOpts = append(txOpts, solana.TransactionAddressTables(opts.AddressTables))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, txOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := tm.signer.SignTransaction(tx, opts.Signers...); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := tm.validator.ValidateTransaction(tx); err != nil {
		tm.logger.Error("Transaction validation failed", zap.String("label", opts.Label), zap.Error(err))
		return nil, err
	}
	return tx, nil
}

// Simulate runs tx through the node without committing it. A rejected
// simulation is returned as *blockchain.SimulationError.
func (tm *Manager) Simulate(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := tm.client.SimulateTransaction(ctx, tx)
	if err != nil {
		if simErr := tm.analyzer.SimulationErrorFromRPC(err); simErr != nil {
			return nil, simErr
		}
		return nil, &blockchain.SimulationError{Err: err.Error()}
	}
	if result.Err != nil {
		simErr := &blockchain.SimulationError{
			Err:           result.Err,
			Logs:          result.Logs,
			UnitsConsumed: result.UnitsConsumed,
			Rejection:     tm.analyzer.RejectionFromLogs(result.Logs),
		}
		if simErr.Rejection == nil {
			simErr.Rejection = tm.analyzer.RejectionFromStatusErr(result.Err)
		}
		return result, simErr
	}
	tm.logger.Debug("Simulation succeeded", zap.Uint64("units_consumed", result.UnitsConsumed))
	return result, nil
}

// Send submits tx, retrying transient errors. A node refusal is returned as
// *blockchain.SubmissionError. When the last attempt failed in transport (the
// request may have reached the node) the result is
// *blockchain.ConfirmationUnknownError carrying the signature of tx.
func (tm *Manager) Send(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	var lastTransport error
	operation := func() (solana.Signature, error) {
		sig, err := tm.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
			SkipPreflight:       skipPreflight,
			PreflightCommitment: tm.config.Commitment,
		})
		if err == nil {
			return sig, nil
		}
		switch {
		case isTransportError(err):
			lastTransport = err
			tm.logger.Warn("Retrying transaction send after transport error", zap.Error(err))
			return solana.Signature{}, err
		case isTransientSendError(err):
			lastTransport = nil
			tm.logger.Warn("Retrying transaction send", zap.Error(err))
			return solana.Signature{}, err
		}
		tm.logger.Error("Node refused transaction",
			zap.String("analysis", tm.analyzer.FormatErrorAnalysis(tm.analyzer.AnalyzeRPCError(err))))
		if simErr := tm.analyzer.SimulationErrorFromRPC(err); simErr != nil {
			return solana.Signature{}, backoff.Permanent(error(simErr))
		}
		return solana.Signature{}, backoff.Permanent(error(&blockchain.SubmissionError{Err: err}))
	}

	sig, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(tm.config.MaxSendElapsed),
	)
	if err == nil {
		return sig, nil
	}

	var simErr *blockchain.SimulationError
	var subErr *blockchain.SubmissionError
	switch {
	case errors.As(err, &simErr), errors.As(err, &subErr):
		return solana.Signature{}, err
	case lastTransport != nil && len(tx.Signatures) > 0:
		return tx.Signatures[0], &blockchain.ConfirmationUnknownError{
			Signature:  tx.Signatures[0],
			Commitment: tm.config.Commitment,
			Err:        lastTransport,
		}
	default:
		return solana.Signature{}, &blockchain.SubmissionError{Err: err}
	}
}

// Confirm waits for sig and maps the tri-state outcome to an error:
// Failed becomes *blockchain.ProgramRejection, Unknown becomes
// *blockchain.ConfirmationUnknownError.
func (tm *Manager) Confirm(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*Status, error) {
	if commitment == "" {
		commitment = tm.config.Commitment
	}
	start := time.Now()
	status, err := tm.monitor.AwaitConfirmation(ctx, sig, commitment)
	if err != nil {
		return status, &blockchain.ConfirmationUnknownError{
			Signature:  sig,
			Commitment: commitment,
			Waited:     time.Since(start),
			Err:        err,
		}
	}

	switch status.Result {
	case blockchain.ConfirmationConfirmed:
		return status, nil
	case blockchain.ConfirmationFailed:
		rejection := tm.analyzer.RejectionFromStatusErr(status.Err)
		rejection.Signature = sig
		return status, rejection
	default:
		return status, &blockchain.ConfirmationUnknownError{
			Signature:  sig,
			Commitment: commitment,
			Waited:     time.Since(start),
		}
	}
}

// SendAndConfirm builds, optionally simulates, submits and confirms a
// transaction. The signature is returned whenever submission happened, even
// if confirmation failed.
func (tm *Manager) SendAndConfirm(ctx context.Context, instructions []solana.Instruction, opts ExecuteOptions) (solana.Signature, error) {
	start := time.Now()
	label := opts.Label
	if label == "" {
		label = "transaction"
	}
	logger := tm.logger.With(zap.String("label", label))

	tx, err := tm.Build(ctx, instructions, opts)
	if err != nil {
		tm.metrics.RecordTransaction(label, metrics.OutcomeFailure, time.Since(start))
		return solana.Signature{}, err
	}

	if opts.Simulate {
		if _, err := tm.Simulate(ctx, tx); err != nil {
			logger.Error("Simulation failed", zap.Error(err))
			tm.metrics.RecordTransaction(label, metrics.OutcomeFailure, time.Since(start))
			return solana.Signature{}, err
		}
	}

	sig, err := tm.Send(ctx, tx, opts.SkipPreflight)
	var unknown *blockchain.ConfirmationUnknownError
	switch {
	case errors.As(err, &unknown):
		// Ответ ноды потерян: судьбу транзакции решает статус подписи.
		logutil.WithTransaction(logger, sig).Warn("Send outcome unknown, polling signature status", zap.Error(err))
	case err != nil:
		logger.Error("Failed to send transaction", zap.Error(err))
		tm.metrics.RecordTransaction(label, metrics.OutcomeFailure, time.Since(start))
		return solana.Signature{}, err
	default:
		logutil.WithTransaction(logger, sig).Info("Transaction sent")
	}
	txLogger := logutil.WithTransaction(logger, sig)

	if _, err := tm.Confirm(ctx, sig, opts.Commitment); err != nil {
		outcome := metrics.OutcomeFailure
		if errors.As(err, &unknown) {
			outcome = metrics.OutcomeUnknown
		}
		txLogger.Error("Transaction confirmation failed", zap.Error(err))
		tm.metrics.RecordTransaction(label, outcome, time.Since(start))
		return sig, err
	}

	tm.metrics.RecordTransaction(label, metrics.OutcomeSuccess, time.Since(start))
	txLogger.Info("Transaction confirmed", zap.Duration("elapsed", time.Since(start)))
	return sig, nil
}

// isTransientSendError: the node answered and did not take the transaction.
func isTransientSendError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"blockhashnotfound",
		"blockhash not found",
		"too many requests",
		"429",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isTransportError: no answer was read, the transaction may have landed.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection reset",
		"broken pipe",
		"timeout",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
