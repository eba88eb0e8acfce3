package bot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain/solbc/lookuptable"
)

// Journal appends every confirmed operation to a file, one JSON object per
// line.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	enc    *json.Encoder
	logger *zap.Logger
}

type journalEntry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Event     any    `json:"event"`
	Error     string `json:"error,omitempty"`
}

// OpenJournal opens path for appending, creating it if needed.
func OpenJournal(path string, logger *zap.Logger) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return &Journal{path: path, file: f, enc: json.NewEncoder(f), logger: logger.Named("journal")}, nil
}

func (j *Journal) OnEvent(event Event) {
	entry := journalEntry{
		Type:      event.GetType(),
		Timestamp: event.GetTimestamp().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Event:     event,
	}
	if e, ok := event.(MigrationInterruptedEvent); ok && e.Err != nil {
		entry.Error = e.Err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(entry); err != nil {
		j.logger.Warn("Failed to write journal entry", zap.String("event_type", entry.Type), zap.Error(err))
	}
}

func (j *Journal) GetSubscribedEventTypes() []string { return nil }

// LookupTable returns the last table journaled for mint.
func (j *Journal) LookupTable(mint solana.PublicKey) (solana.PublicKey, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("failed to read journal %s: %w", j.path, err)
	}
	defer f.Close()

	var (
		table solana.PublicKey
		found bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry struct {
			Type  string                `json:"type"`
			Event LookupTableBuiltEvent `json:"event"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// события других типов могут не разобраться в LookupTableBuiltEvent
			continue
		}
		if entry.Type == (LookupTableBuiltEvent{}).GetType() && entry.Event.Mint.Equals(mint) {
			table, found = entry.Event.Table, true
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
		return solana.PublicKey{}, false, err
	}
	return table, found, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// AttachJournal subscribes a journal at path to r's events and closes it on
// Shutdown. Migrations then reuse the lookup tables it records.
func (r *Runner) AttachJournal(path string) error {
	j, err := OpenJournal(path, r.logger)
	if err != nil {
		return err
	}
	r.events.Subscribe(j)
	r.journal = j
	r.OnShutdown("journal", j)
	return nil
}

// journalTables is the migration.TableStore of a runner with a journal.
type journalTables struct {
	journal *Journal
	events  *EventBus
	logger  *zap.Logger
}

func (t journalTables) LookupTable(mint solana.PublicKey) (solana.PublicKey, bool) {
	table, ok, err := t.journal.LookupTable(mint)
	if err != nil {
		t.logger.Warn("Failed to read lookup table from journal", zap.Error(err))
		return solana.PublicKey{}, false
	}
	return table, ok
}

func (t journalTables) RecordLookupTable(mint solana.PublicKey, table *lookuptable.Table) {
	var sig solana.Signature
	if n := len(table.Signatures); n > 0 {
		sig = table.Signatures[n-1]
	}
	t.events.Publish(LookupTableBuiltEvent{
		Mint:      mint,
		Table:     table.Address,
		Addresses: len(table.Addresses),
		Signature: sig,
		Timestamp: time.Now(),
	})
}
