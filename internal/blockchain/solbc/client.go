// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc        *rpc.Client
	logger     *zap.Logger
	commitment rpc.CommitmentType
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, commitment rpc.CommitmentType, logger *zap.Logger) *Client {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:        rpc.New(rpcURL),
		logger:     logger.Named("solbc-client"),
		commitment: commitment,
	}
}

// GetLatestBlockhash получает последний blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetSlot возвращает текущий слот на уровне commitment клиента.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		c.logger.Error("GetSlot error", zap.Error(err))
		return 0, err
	}
	return slot, nil
}

// GetAccountInfo получает информацию об аккаунте.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	return c.GetAccountInfoWithCommitment(ctx, pubkey, c.commitment)
}

// GetAccountInfoWithCommitment получает аккаунт с заданным уровнем commitment.
// Отсутствие аккаунта отличается от сбоя чтения.
func (c *Client) GetAccountInfoWithCommitment(
	ctx context.Context,
	pubkey solana.PublicKey,
	commitment rpc.CommitmentType,
) (*blockchain.Account, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, blockchain.ErrAccountNotFound
		}
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, &blockchain.AccountFetchError{Address: pubkey, Err: err}
	}
	if result == nil || result.Value == nil {
		return nil, blockchain.ErrAccountNotFound
	}
	return toAccount(pubkey, result.Value), nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах за один запрос
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*blockchain.Account, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error", zap.Error(err))
		return nil, &blockchain.AccountFetchError{Address: pubkeys[0], Err: err}
	}

	accounts := make([]*blockchain.Account, len(pubkeys))
	for i, acc := range res.Value {
		if i >= len(pubkeys) || acc == nil {
			continue
		}
		accounts[i] = toAccount(pubkeys[i], acc)
	}
	return accounts, nil
}

func toAccount(address solana.PublicKey, acc *rpc.Account) *blockchain.Account {
	out := &blockchain.Account{
		Address:    address,
		Owner:      acc.Owner,
		Lamports:   acc.Lamports,
		Executable: acc.Executable,
	}
	if acc.Data != nil {
		out.Data = acc.Data.GetBinary()
	}
	return out
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, true, signatures...)
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  true,
		Commitment: c.commitment,
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenAccountBalance получает баланс токенного аккаунта
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, c.commitment)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, blockchain.ErrAccountNotFound
		}
		return 0, &blockchain.AccountFetchError{Address: account, Err: err}
	}
	if result == nil || result.Value == nil {
		return 0, blockchain.ErrAccountNotFound
	}
	return strconv.ParseUint(result.Value.Amount, 10, 64)
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
