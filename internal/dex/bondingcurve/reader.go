// =============================
// File: internal/dex/bondingcurve/reader.go
// =============================
package bondingcurve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

// ReaderOptions содержит опции повторных попыток чтения.
type ReaderOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultReaderOptions возвращает настройки по умолчанию.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Reader читает состояние программы кривой. Каждый вызов делает свежее
// чтение из сети, результаты не кешируются.
type Reader struct {
	client  blockchain.Client
	config  *Config
	logger  *zap.Logger
	options ReaderOptions
}

// NewReader создаёт Reader для программы cfg.ProgramID.
func NewReader(client blockchain.Client, cfg *Config, logger *zap.Logger, opts ...ReaderOptions) *Reader {
	options := DefaultReaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	return &Reader{
		client:  client,
		config:  cfg,
		logger:  logger.Named("curve-reader"),
		options: options,
	}
}

// fetch reads address, retrying only transient read failures.
func (r *Reader) fetch(ctx context.Context, address solana.PublicKey) (*blockchain.Account, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.options.RetryDelay
	policy.MaxInterval = r.options.RetryDelay * 10

	notify := func(err error, d time.Duration) {
		r.logger.Info("Повтор чтения аккаунта после ошибки",
			zap.String("address", address.String()),
			zap.Error(err),
			zap.Duration("backoff", d))
	}

	operation := func() (*blockchain.Account, error) {
		acct, err := r.client.GetAccountInfo(ctx, address)
		if err == nil {
			return acct, nil
		}
		if blockchain.IsAccountFetchError(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	maxTries := r.options.MaxRetries
	if maxTries <= 0 {
		maxTries = 1
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(notify))
}

// FetchConfig reads and decodes the global Config account.
func (r *Reader) FetchConfig(ctx context.Context) (*ConfigAccount, error) {
	acct, err := r.fetch(ctx, r.config.GlobalConfig)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, fmt.Errorf("config account %s is not initialized: %w", r.config.GlobalConfig, err)
		}
		return nil, err
	}
	return DecodeConfigAccount(acct.Data)
}

// FetchBondingCurve reads and decodes the BondingCurve account of mint.
func (r *Reader) FetchBondingCurve(ctx context.Context, mint solana.PublicKey) (*BondingCurveAccount, error) {
	curveAddr, _, err := DeriveBondingCurve(r.config.ProgramID, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	acct, err := r.fetch(ctx, curveAddr)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, fmt.Errorf("no bonding curve for mint %s: %w", mint, err)
		}
		return nil, err
	}
	curve, err := DecodeBondingCurveAccount(acct.Data)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Bonding curve fetched",
		zap.String("mint", mint.String()),
		zap.Uint64("virtual_sol_reserves", curve.VirtualSolReserves),
		zap.Uint64("virtual_token_reserves", curve.VirtualTokenReserves),
		zap.Uint64("real_sol_reserves", curve.RealSolReserves),
		zap.Uint64("real_token_reserves", curve.RealTokenReserves),
		zap.Bool("is_completed", curve.IsCompleted))
	return curve, nil
}

// FetchMintDecimals reads the SPL mint account and returns its decimals.
func (r *Reader) FetchMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	acct, err := r.fetch(ctx, mint)
	if err != nil {
		return 0, err
	}
	var m token.Mint
	if err := bin.NewBinDecoder(acct.Data).Decode(&m); err != nil {
		return 0, fmt.Errorf("failed to decode mint %s: %w", mint, err)
	}
	return m.Decimals, nil
}

// Snapshot returns a fresh ReserveSnapshot for mint.
func (r *Reader) Snapshot(ctx context.Context, mint solana.PublicKey) (ReserveSnapshot, error) {
	curve, err := r.FetchBondingCurve(ctx, mint)
	if err != nil {
		return ReserveSnapshot{}, err
	}
	return curve.Snapshot(), nil
}
