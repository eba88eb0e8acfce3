// =============================
// File: internal/provision/provisioner.go
// =============================
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/meteora"
)

// Result is the outcome of one existence check. Instruction is nil when the
// account already exists.
type Result struct {
	Address     solana.PublicKey
	Exists      bool
	Instruction solana.Instruction
}

// VaultResult adds the vault addresses and the LP mint that must be used
// downstream.
type VaultResult struct {
	Result
	Mint      solana.PublicKey
	Addresses meteora.VaultAddresses
	// LpMint is the on-chain lp_mint for an existing vault, the derived one otherwise.
	LpMint solana.PublicKey
	State  *meteora.VaultState
}

// Provisioner checks prerequisite accounts and emits creation instructions
// only for absent ones. It never submits anything.
type Provisioner struct {
	client   blockchain.Client
	programs meteora.Programs
	logger   *zap.Logger
}

func NewProvisioner(client blockchain.Client, programs meteora.Programs, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		client:   client,
		programs: programs,
		logger:   logger.Named("provisioner"),
	}
}

// lookup returns (nil, nil) for an absent account. A failed read is always an
// error, never "absent".
func (p *Provisioner) lookup(ctx context.Context, address solana.PublicKey) (*blockchain.Account, error) {
	acct, err := p.client.GetAccountInfo(ctx, address)
	switch {
	case err == nil:
		return acct, nil
	case errors.Is(err, blockchain.ErrAccountNotFound):
		return nil, nil
	case blockchain.IsAccountFetchError(err):
		return nil, err
	default:
		return nil, &blockchain.AccountFetchError{Address: address, Err: err}
	}
}

// EnsureVault checks the dynamic vault of mint.
func (p *Provisioner) EnsureVault(ctx context.Context, mint, payer solana.PublicKey) (*VaultResult, error) {
	addrs, err := p.programs.DeriveVaultAddresses(mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault of %s: %w", mint, err)
	}

	acct, err := p.lookup(ctx, addrs.Vault)
	if err != nil {
		return nil, err
	}

	res := &VaultResult{
		Result:    Result{Address: addrs.Vault},
		Mint:      mint,
		Addresses: addrs,
		LpMint:    addrs.LpMint,
	}

	if acct == nil {
		ix, _, err := p.programs.BuildInitializeVaultInstruction(payer, mint)
		if err != nil {
			return nil, err
		}
		res.Instruction = ix
		p.logger.Info("Vault is missing, initialize instruction queued",
			zap.String("mint", mint.String()),
			zap.String("vault", addrs.Vault.String()))
		return res, nil
	}

	state, err := meteora.DecodeVaultState(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", addrs.Vault, err)
	}
	res.Exists = true
	res.State = state
	res.LpMint = state.LpMint
	if !state.LpMint.Equals(addrs.LpMint) {
		p.logger.Debug("Vault uses a legacy LP mint",
			zap.String("vault", addrs.Vault.String()),
			zap.String("lp_mint", state.LpMint.String()),
			zap.String("derived_lp_mint", addrs.LpMint.String()))
	}
	return res, nil
}

// EnsureVaults checks both vaults concurrently; both reads finish before
// either result is returned.
func (p *Provisioner) EnsureVaults(ctx context.Context, mintA, mintB, payer solana.PublicKey) (*VaultResult, *VaultResult, error) {
	var a, b *VaultResult
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = p.EnsureVault(gCtx, mintA, payer)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = p.EnsureVault(gCtx, mintB, payer)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// EnsureATA checks the associated token account of owner for mint. The owner
// may be a PDA.
func (p *Provisioner) EnsureATA(ctx context.Context, owner, mint, payer solana.PublicKey) (*Result, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find ATA: %w", err)
	}

	acct, err := p.lookup(ctx, ata)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return &Result{Address: ata, Exists: true}, nil
	}

	ix := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build()
	p.logger.Debug("ATA creation instruction added",
		zap.String("ata", ata.String()),
		zap.String("owner", owner.String()),
		zap.String("mint", mint.String()))
	return &Result{Address: ata, Instruction: ix}, nil
}

// Batch collects creation instructions in submission order.
type Batch struct {
	instructions []solana.Instruction
}

// Add appends the instructions of results that need one.
func (b *Batch) Add(results ...*Result) {
	for _, r := range results {
		if r != nil && r.Instruction != nil {
			b.instructions = append(b.instructions, r.Instruction)
		}
	}
}

func (b *Batch) Instructions() []solana.Instruction {
	return b.instructions
}

func (b *Batch) Empty() bool {
	return len(b.instructions) == 0
}
