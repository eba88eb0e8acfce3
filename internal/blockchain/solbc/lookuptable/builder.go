package lookuptable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/pump-meteora/internal/utils/metrics"
)

// DefaultSettleDelay is the pause after the last extension before the table is
// fetched. A table is not usable in the slot it was extended in.
const DefaultSettleDelay = 2 * time.Second

// Sender submits a transaction and waits for its confirmation.
type Sender interface {
	SendAndConfirm(ctx context.Context, instructions []solana.Instruction, opts transaction.ExecuteOptions) (solana.Signature, error)
	Payer() solana.PublicKey
}

// Table is a lookup table ready to be referenced by v0 transactions.
type Table struct {
	Address   solana.PublicKey
	Addresses solana.PublicKeySlice
	// Signatures of the transactions that created and extended the table.
	Signatures []solana.Signature
}

// AddressTables returns the table in the form solana.TransactionAddressTables
// expects. A nil table yields nil, compiling a legacy message.
func (t *Table) AddressTables() map[solana.PublicKey]solana.PublicKeySlice {
	if t == nil {
		return nil
	}
	return map[solana.PublicKey]solana.PublicKeySlice{t.Address: t.Addresses}
}

type Builder struct {
	client      blockchain.Client
	sender      Sender
	logger      *zap.Logger
	settleDelay time.Duration
	metrics     *metrics.Collector
	sleep       func(time.Duration)
}

func NewBuilder(client blockchain.Client, sender Sender, logger *zap.Logger, settleDelay time.Duration, collector *metrics.Collector) *Builder {
	if settleDelay < 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Builder{
		client:      client,
		sender:      sender,
		logger:      logger.Named("lookup-table"),
		settleDelay: settleDelay,
		metrics:     collector,
		sleep:       time.Sleep,
	}
}

// Build creates a table holding addresses, waits for it to settle and returns
// it as read back from the ledger at finalized commitment.
func (b *Builder) Build(ctx context.Context, addresses []solana.PublicKey) (*Table, error) {
	addresses = Dedup(addresses)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no addresses for lookup table")
	}
	if len(addresses) > MaxAddresses {
		return nil, fmt.Errorf("too many addresses for one lookup table: %d > %d", len(addresses), MaxAddresses)
	}

	slot, err := b.client.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	if slot < RecentSlotOffset {
		return nil, fmt.Errorf("current slot %d is below the recent slot offset", slot)
	}
	recentSlot := slot - RecentSlotOffset

	authority := b.sender.Payer()
	createIx, tableAddr, err := CreateInstruction(authority, authority, recentSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to derive lookup table address: %w", err)
	}

	logger := b.logger.With(zap.String("table", tableAddr.String()))
	logger.Info("Creating lookup table",
		zap.Uint64("recent_slot", recentSlot),
		zap.Int("addresses", len(addresses)))

	table := &Table{Address: tableAddr}
	chunks := Chunk(addresses, MaxAddressesPerExtend)
	for i, chunk := range chunks {
		ixs := []solana.Instruction{ExtendInstruction(tableAddr, authority, authority, chunk)}
		label := "lookup_table_extend"
		if i == 0 {
			ixs = append([]solana.Instruction{createIx}, ixs...)
			label = "lookup_table_create"
		}
		sig, err := b.sender.SendAndConfirm(ctx, ixs, transaction.ExecuteOptions{
			Commitment: rpc.CommitmentFinalized,
			Label:      label,
		})
		if sig != (solana.Signature{}) {
			table.Signatures = append(table.Signatures, sig)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup table chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	b.sleep(b.settleDelay)

	state, err := b.fetch(ctx, tableAddr)
	if err != nil {
		return nil, err
	}
	if missing := state.Missing(addresses); len(missing) > 0 {
		return nil, fmt.Errorf("lookup table %s is missing %d addresses after extension", tableAddr, len(missing))
	}
	table.Addresses = state.Addresses

	b.metrics.SetLookupTableSize(len(table.Addresses))
	logger.Info("Lookup table ready", zap.Int("addresses", len(table.Addresses)))
	return table, nil
}

// Load reuses the table at address when it is active and already holds every
// required address. Otherwise a new table is built.
func (b *Builder) Load(ctx context.Context, address solana.PublicKey, required []solana.PublicKey) (*Table, error) {
	if address.IsZero() {
		return b.Build(ctx, required)
	}

	state, err := b.fetch(ctx, address)
	switch {
	case errors.Is(err, blockchain.ErrAccountNotFound):
		b.logger.Warn("Lookup table not found, building a new one", zap.String("table", address.String()))
		return b.Build(ctx, required)
	case err != nil:
		return nil, err
	}

	if !state.IsActive() {
		b.logger.Warn("Lookup table is deactivated, building a new one", zap.String("table", address.String()))
		return b.Build(ctx, required)
	}
	if missing := state.Missing(required); len(missing) > 0 {
		b.logger.Warn("Lookup table lacks required addresses, building a new one",
			zap.String("table", address.String()),
			zap.Int("missing", len(missing)))
		return b.Build(ctx, required)
	}

	b.logger.Info("Reusing lookup table", zap.String("table", address.String()))
	return &Table{Address: address, Addresses: state.Addresses}, nil
}

func (b *Builder) fetch(ctx context.Context, address solana.PublicKey) (*State, error) {
	acct, err := b.client.GetAccountInfoWithCommitment(ctx, address, rpc.CommitmentFinalized)
	if err != nil {
		return nil, err
	}
	if !acct.Owner.IsZero() && !acct.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrInvalidTableAccount, address, acct.Owner)
	}
	state, err := DecodeState(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode lookup table %s: %w", address, err)
	}
	return state, nil
}
