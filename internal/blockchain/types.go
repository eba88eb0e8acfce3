// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// Account is the raw state of a ledger account.
type Account struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// ConfirmationStatus is the tri-state outcome of waiting for a signature.
type ConfirmationStatus int

const (
	// ConfirmationUnknown: the ledger did not report a final outcome in time.
	ConfirmationUnknown ConfirmationStatus = iota
	// ConfirmationConfirmed: landed without error at the requested commitment.
	ConfirmationConfirmed
	// ConfirmationFailed: landed and the program returned an error.
	ConfirmationFailed
)

func (s ConfirmationStatus) String() string {
	switch s {
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Получить текущий слот.
	GetSlot(ctx context.Context) (uint64, error)
	// Получить аккаунт. Отсутствующий аккаунт возвращает ErrAccountNotFound,
	// сбой чтения возвращает *AccountFetchError.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*Account, error)
	// То же, но с явным уровнем commitment.
	GetAccountInfoWithCommitment(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*Account, error)
	// Получить несколько аккаунтов за один запрос; отсутствующие возвращаются как nil.
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*Account, error)
	// Получить статусы подписей транзакций.
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Симулировать транзакцию.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// Получить баланс токенного аккаунта в базовых единицах.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}
