// Package blockchaintest содержит моки клиента блокчейна для тестов.
package blockchaintest

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

// MockClient реализует интерфейс blockchain.Client
type MockClient struct {
	mock.Mock
}

var _ blockchain.Client = (*MockClient)(nil)

func (m *MockClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockClient) GetSlot(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	args := m.Called(ctx, pubkey)
	acct, _ := args.Get(0).(*blockchain.Account)
	return acct, args.Error(1)
}

func (m *MockClient) GetAccountInfoWithCommitment(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (*blockchain.Account, error) {
	args := m.Called(ctx, pubkey, commitment)
	acct, _ := args.Get(0).(*blockchain.Account)
	return acct, args.Error(1)
}

func (m *MockClient) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*blockchain.Account, error) {
	args := m.Called(ctx, pubkeys)
	accts, _ := args.Get(0).([]*blockchain.Account)
	return accts, args.Error(1)
}

func (m *MockClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, signatures)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

func (m *MockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *MockClient) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, pubkey, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

// KeySigner подписывает транзакции ключом плательщика и дополнительными ключами.
type KeySigner struct {
	Key solana.PrivateKey
}

func (s KeySigner) SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	keys := append([]solana.PrivateKey{s.Key}, extra...)
	_, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	})
	return err
}

// Confirmed строит ответ getSignatureStatuses для подтвержденной транзакции.
func Confirmed(status rpc.ConfirmationStatusType) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{{
			Slot:               100,
			ConfirmationStatus: status,
		}},
	}
}

// Failed строит ответ getSignatureStatuses для транзакции с ошибкой исполнения.
func Failed(errVal interface{}) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{{
			Slot:               100,
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
			Err:                errVal,
		}},
	}
}
