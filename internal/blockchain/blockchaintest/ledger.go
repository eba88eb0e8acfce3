package blockchaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

const tokenAccountSize = 165

// Ledger is an in-memory blockchain.Client. Sent transactions are recorded
// and confirmed at finalized unless a hook says otherwise.
type Ledger struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*blockchain.Account
	statuses map[solana.Signature]*rpc.SignatureStatusesResult
	sent     []*solana.Transaction
	reads    int
	slot     uint64

	// OnSend runs for every submitted transaction. A non-nil status err marks
	// the transaction as failed on-chain; a returned error rejects submission.
	OnSend func(l *Ledger, tx *solana.Transaction) (statusErr interface{}, err error)
	// OnSimulate overrides the default successful simulation.
	OnSimulate func(tx *solana.Transaction) *blockchain.SimulationResult
	// Unconfirmed leaves sent transactions without a status.
	Unconfirmed bool
	// FetchErr fails every account read.
	FetchErr error
	// DefaultBalance is returned by GetBalance for keys without SetBalance.
	DefaultBalance uint64

	balances map[solana.PublicKey]uint64
}

var _ blockchain.Client = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[solana.PublicKey]*blockchain.Account),
		statuses: make(map[solana.Signature]*rpc.SignatureStatusesResult),
		balances: make(map[solana.PublicKey]uint64),
		slot:     10_000,
		// 1000 SOL
		DefaultBalance: 1_000_000_000_000,
	}
}

// SetBalance sets the lamports GetBalance reports for address.
func (l *Ledger) SetBalance(address solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = lamports
}

// SetTokenAccount stores an SPL token account holding amount of mint.
func (l *Ledger) SetTokenAccount(address, mint, owner solana.PublicKey, amount uint64) {
	data := make([]byte, tokenAccountSize)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:72], amount)
	l.SetAccount(address, solana.TokenProgramID, data)
}

// AccountData returns a copy of the data at address without locking, for use
// inside hooks.
func (l *Ledger) AccountData(address solana.PublicKey) ([]byte, bool) {
	acct, ok := l.accounts[address]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), acct.Data...), true
}

// AccountsOwnedBy returns the addresses of every account owned by program.
func (l *Ledger) AccountsOwnedBy(program solana.PublicKey) []solana.PublicKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []solana.PublicKey
	for addr, acct := range l.accounts {
		if acct.Owner.Equals(program) {
			out = append(out, addr)
		}
	}
	return out
}

// SetAccount stores data at address. Must not be called from OnSend; use
// PutAccount there.
func (l *Ledger) SetAccount(address, owner solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.PutAccount(address, owner, data)
}

// PutAccount is SetAccount without locking, for use inside hooks.
func (l *Ledger) PutAccount(address, owner solana.PublicKey, data []byte) {
	l.accounts[address] = &blockchain.Account{Address: address, Owner: owner, Lamports: 1, Data: data}
}

// HasAccount reports whether address exists.
func (l *Ledger) HasAccount(address solana.PublicKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[address]
	return ok
}

// Sent returns the submitted transactions in order.
func (l *Ledger) Sent() []*solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*solana.Transaction(nil), l.sent...)
}

// Reads returns the number of account reads served.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func (l *Ledger) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{9, 9, 9}, nil
}

func (l *Ledger) GetSlot(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot, nil
}

func (l *Ledger) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	return l.GetAccountInfoWithCommitment(ctx, pubkey, rpc.CommitmentConfirmed)
}

func (l *Ledger) GetAccountInfoWithCommitment(_ context.Context, pubkey solana.PublicKey, _ rpc.CommitmentType) (*blockchain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.FetchErr != nil {
		return nil, &blockchain.AccountFetchError{Address: pubkey, Err: l.FetchErr}
	}
	acct, ok := l.accounts[pubkey]
	if !ok {
		return nil, blockchain.ErrAccountNotFound
	}
	cp := *acct
	cp.Data = append([]byte(nil), acct.Data...)
	return &cp, nil
}

func (l *Ledger) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*blockchain.Account, error) {
	out := make([]*blockchain.Account, len(pubkeys))
	for i, pk := range pubkeys {
		acct, err := l.GetAccountInfo(ctx, pk)
		if err != nil && !errors.Is(err, blockchain.ErrAccountNotFound) {
			return nil, err
		}
		out[i] = acct
	}
	return out, nil
}

func (l *Ledger) GetSignatureStatuses(_ context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(signatures))}
	for i, sig := range signatures {
		res.Value[i] = l.statuses[sig]
	}
	return res, nil
}

func (l *Ledger) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ blockchain.TransactionOptions) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var statusErr interface{}
	if l.OnSend != nil {
		var err error
		statusErr, err = l.OnSend(l, tx)
		if err != nil {
			return solana.Signature{}, err
		}
	}

	l.sent = append(l.sent, tx)
	sig := tx.Signatures[0]
	if !l.Unconfirmed {
		l.statuses[sig] = &rpc.SignatureStatusesResult{
			Slot:               l.slot,
			ConfirmationStatus: rpc.ConfirmationStatusFinalized,
			Err:                statusErr,
		}
	}
	l.slot++
	return sig, nil
}

func (l *Ledger) SimulateTransaction(_ context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	if l.OnSimulate != nil {
		if res := l.OnSimulate(tx); res != nil {
			return res, nil
		}
	}
	return &blockchain.SimulationResult{UnitsConsumed: 1}, nil
}

func (l *Ledger) GetBalance(_ context.Context, pubkey solana.PublicKey, _ rpc.CommitmentType) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lamports, ok := l.balances[pubkey]; ok {
		return lamports, nil
	}
	return l.DefaultBalance, nil
}

// GetTokenAccountBalance reads the amount field of an SPL token account.
func (l *Ledger) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acct, err := l.GetAccountInfo(ctx, account)
	if err != nil {
		return 0, err
	}
	if len(acct.Data) < 72 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(acct.Data[64:72]), nil
}

// Instructions resolves the program and accounts of every instruction in tx.
func Instructions(tx *solana.Transaction) []DecodedInstruction {
	keys := tx.Message.AccountKeys
	var out []DecodedInstruction
	for _, ci := range tx.Message.Instructions {
		di := DecodedInstruction{Data: ci.Data}
		if int(ci.ProgramIDIndex) < len(keys) {
			di.ProgramID = keys[ci.ProgramIDIndex]
		}
		for _, idx := range ci.Accounts {
			if int(idx) < len(keys) {
				di.Accounts = append(di.Accounts, keys[idx])
			}
		}
		out = append(out, di)
	}
	return out
}

// DecodedInstruction is a compiled instruction with indexes resolved. Accounts
// loaded through lookup tables are omitted.
type DecodedInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}
