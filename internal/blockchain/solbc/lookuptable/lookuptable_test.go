package lookuptable

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/blockchaintest"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/transaction"
)

func keys(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		out[i] = solana.NewWallet().PublicKey()
	}
	return out
}

func TestCreateInstruction_Layout(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	ix, table, err := CreateInstruction(authority, authority, 12345)
	require.NoError(t, err)

	expected, bump, err := DeriveAddress(authority, 12345)
	require.NoError(t, err)
	assert.Equal(t, expected, table)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 13)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(12345), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, bump, data[12])

	accts := ix.Accounts()
	require.Len(t, accts, 4)
	assert.Equal(t, table, accts[0].PublicKey)
	assert.True(t, accts[0].IsWritable)
	assert.True(t, accts[1].IsSigner)
	assert.Equal(t, solana.SystemProgramID, accts[3].PublicKey)
}

func TestExtendInstruction_Layout(t *testing.T) {
	addrs := keys(3)
	authority := solana.NewWallet().PublicKey()
	ix := ExtendInstruction(solana.NewWallet().PublicKey(), authority, authority, addrs)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 4+8+3*32)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, addrs[2].Bytes(), data[12+64:])
}

func TestChunkAndDedup(t *testing.T) {
	addrs := keys(65)
	chunks := Chunk(addrs, MaxAddressesPerExtend)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 30)
	assert.Len(t, chunks[2], 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MaxAddressesPerExtend)
	}

	withDupes := append([]solana.PublicKey{addrs[1]}, addrs[:3]...)
	assert.Equal(t, []solana.PublicKey{addrs[1], addrs[0], addrs[2]}, Dedup(withDupes))
	assert.Empty(t, Chunk(nil, 30))
}

func TestState_DecodeEncode(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	state := &State{
		DeactivationSlot: math.MaxUint64,
		LastExtendedSlot: 99,
		Authority:        &authority,
		Addresses:        keys(27),
	}
	data := EncodeState(state)
	assert.Len(t, data, metaSize+27*32)

	decoded, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
	assert.True(t, decoded.IsActive())
	assert.Empty(t, decoded.Missing(state.Addresses[:10]))

	_, err = DecodeState(data[:metaSize-1])
	assert.ErrorIs(t, err, ErrInvalidTableAccount)
	_, err = DecodeState(data[:metaSize+5])
	assert.ErrorIs(t, err, ErrInvalidTableAccount)
}

// fakeSender records submitted instruction batches.
type fakeSender struct {
	payer   solana.PublicKey
	batches [][]solana.Instruction
	opts    []transaction.ExecuteOptions
	err     error
}

func (f *fakeSender) Payer() solana.PublicKey { return f.payer }

func (f *fakeSender) SendAndConfirm(_ context.Context, ixs []solana.Instruction, opts transaction.ExecuteOptions) (solana.Signature, error) {
	f.batches = append(f.batches, ixs)
	f.opts = append(f.opts, opts)
	return solana.Signature{byte(len(f.batches))}, f.err
}

func newTestBuilder(t *testing.T) (*Builder, *blockchaintest.MockClient, *fakeSender) {
	t.Helper()
	client := new(blockchaintest.MockClient)
	sender := &fakeSender{payer: solana.NewWallet().PublicKey()}
	b := NewBuilder(client, sender, zap.NewNop(), 0, nil)
	b.sleep = func(time.Duration) {}
	return b, client, sender
}

func TestBuilder_Build(t *testing.T) {
	b, client, sender := newTestBuilder(t)
	addrs := keys(27)

	client.On("GetSlot", mock.Anything).Return(uint64(1000), nil)
	table, _, _ := DeriveAddress(sender.payer, 800)
	client.On("GetAccountInfoWithCommitment", mock.Anything, table, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Authority: &sender.payer, Addresses: addrs}),
	}, nil)

	got, err := b.Build(context.Background(), append(addrs, addrs[0]))
	require.NoError(t, err)
	assert.Equal(t, table, got.Address)
	assert.Len(t, got.Addresses, 27)
	assert.Len(t, got.Signatures, 1)

	// create и extend уходят одной транзакцией
	require.Len(t, sender.batches, 1)
	assert.Len(t, sender.batches[0], 2)
	assert.Equal(t, rpc.CommitmentFinalized, sender.opts[0].Commitment)
	assert.Contains(t, got.AddressTables(), table)
}

func TestBuilder_BuildMultipleChunks(t *testing.T) {
	b, client, sender := newTestBuilder(t)
	addrs := keys(45)
	client.On("GetSlot", mock.Anything).Return(uint64(1000), nil)
	client.On("GetAccountInfoWithCommitment", mock.Anything, mock.Anything, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Addresses: addrs}),
	}, nil)

	_, err := b.Build(context.Background(), addrs)
	require.NoError(t, err)
	require.Len(t, sender.batches, 2)
	assert.Len(t, sender.batches[0], 2)
	assert.Len(t, sender.batches[1], 1)
}

func TestBuilder_BuildDetectsMissingAddresses(t *testing.T) {
	b, client, _ := newTestBuilder(t)
	addrs := keys(5)
	client.On("GetSlot", mock.Anything).Return(uint64(1000), nil)
	client.On("GetAccountInfoWithCommitment", mock.Anything, mock.Anything, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Addresses: addrs[:4]}),
	}, nil)

	_, err := b.Build(context.Background(), addrs)
	assert.ErrorContains(t, err, "missing 1 addresses")
}

func TestBuilder_BuildPropagatesUnknownConfirmation(t *testing.T) {
	b, client, sender := newTestBuilder(t)
	sender.err = &blockchain.ConfirmationUnknownError{Commitment: rpc.CommitmentFinalized}
	client.On("GetSlot", mock.Anything).Return(uint64(1000), nil)

	_, err := b.Build(context.Background(), keys(3))
	var unknown *blockchain.ConfirmationUnknownError
	assert.True(t, errors.As(err, &unknown))
	client.AssertNotCalled(t, "GetAccountInfoWithCommitment", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuilder_LoadReusesCompleteTable(t *testing.T) {
	b, client, sender := newTestBuilder(t)
	addrs := keys(10)
	existing := solana.NewWallet().PublicKey()
	client.On("GetAccountInfoWithCommitment", mock.Anything, existing, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Addresses: addrs}),
	}, nil)

	got, err := b.Load(context.Background(), existing, addrs[:7])
	require.NoError(t, err)
	assert.Equal(t, existing, got.Address)
	assert.Empty(t, sender.batches)
}

func TestBuilder_LoadRebuildsIncompleteTable(t *testing.T) {
	b, client, sender := newTestBuilder(t)
	addrs := keys(10)
	existing := solana.NewWallet().PublicKey()
	client.On("GetAccountInfoWithCommitment", mock.Anything, existing, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Addresses: addrs[:3]}),
	}, nil)
	client.On("GetSlot", mock.Anything).Return(uint64(500), nil)
	fresh, _, _ := DeriveAddress(sender.payer, 300)
	client.On("GetAccountInfoWithCommitment", mock.Anything, fresh, rpc.CommitmentFinalized).Return(&blockchain.Account{
		Owner: ProgramID,
		Data:  EncodeState(&State{DeactivationSlot: math.MaxUint64, Addresses: addrs}),
	}, nil)

	got, err := b.Load(context.Background(), existing, addrs)
	require.NoError(t, err)
	assert.Equal(t, fresh, got.Address)
	assert.Len(t, sender.batches, 1)
}
