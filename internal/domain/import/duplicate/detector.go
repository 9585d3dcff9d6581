// Package duplicate flags import candidates that already exist in the ledger.
// Matching is exact set membership over a content hash; there is no fuzzy or
// near-duplicate matching.
package duplicate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
)

// LedgerEntry is the slice of a stored transaction the hash is derived from.
type LedgerEntry struct {
	TransactionDate time.Time
	Description     string
	Amount          int64
}

// LedgerReader loads the non-deleted transactions of one account.
type LedgerReader interface {
	ListActiveEntries(ctx context.Context, accountID uuid.UUID) ([]LedgerEntry, error)
}

// Candidate is one parsed row to test against the account's history.
type Candidate struct {
	TransactionDate *time.Time
	Description     string
	TransactionType parser.TransactionType
	Amount          int64
}

// hashKey is the equality key for duplicate-set membership. The date is kept
// as a calendar string so location and monotonic-clock fields of time.Time
// never affect comparison.
type hashKey struct {
	accountID   uuid.UUID
	date        string
	description string
	txType      parser.TransactionType
	amount      int64
}

func keyFromEntry(accountID uuid.UUID, e LedgerEntry) hashKey {
	txType := parser.TypeDebit
	if e.Amount >= 0 {
		txType = parser.TypeCredit
	}
	return hashKey{
		accountID:   accountID,
		date:        e.TransactionDate.Format(time.DateOnly),
		description: normalizeDescription(e.Description),
		txType:      txType,
		amount:      e.Amount,
	}
}

func keyFromCandidate(accountID uuid.UUID, c Candidate) hashKey {
	return hashKey{
		accountID:   accountID,
		date:        c.TransactionDate.Format(time.DateOnly),
		description: normalizeDescription(c.Description),
		txType:      c.TransactionType,
		amount:      c.Amount,
	}
}

func normalizeDescription(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Detector checks candidates against an account's existing transactions. The
// hash set is cached per account and must be invalidated with ClearCache when
// switching contexts; detectors are per-request instances, never shared
// process-wide.
type Detector struct {
	reader LedgerReader

	mu              sync.Mutex
	cachedAccountID *uuid.UUID
	cachedHashes    map[hashKey]struct{}
}

// NewDetector creates a detector backed by the given ledger reader.
func NewDetector(reader LedgerReader) *Detector {
	return &Detector{reader: reader}
}

func (d *Detector) hashSet(ctx context.Context, accountID uuid.UUID) (map[hashKey]struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cachedAccountID != nil && *d.cachedAccountID == accountID {
		return d.cachedHashes, nil
	}

	entries, err := d.reader.ListActiveEntries(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account transactions: %w", err)
	}

	hashes := make(map[hashKey]struct{}, len(entries))
	for _, e := range entries {
		hashes[keyFromEntry(accountID, e)] = struct{}{}
	}

	id := accountID
	d.cachedAccountID = &id
	d.cachedHashes = hashes
	return hashes, nil
}

// IsDuplicate reports whether a single candidate matches an existing
// transaction. A candidate without a transaction date is never a duplicate.
func (d *Detector) IsDuplicate(ctx context.Context, accountID uuid.UUID, c Candidate) (bool, error) {
	if c.TransactionDate == nil {
		return false, nil
	}
	hashes, err := d.hashSet(ctx, accountID)
	if err != nil {
		return false, err
	}
	_, ok := hashes[keyFromCandidate(accountID, c)]
	return ok, nil
}

// CheckBatch tests every candidate, returning one flag per candidate in order.
func (d *Detector) CheckBatch(ctx context.Context, accountID uuid.UUID, candidates []Candidate) ([]bool, error) {
	hashes, err := d.hashSet(ctx, accountID)
	if err != nil {
		return nil, err
	}

	flags := make([]bool, len(candidates))
	for i, c := range candidates {
		if c.TransactionDate == nil {
			continue
		}
		_, flags[i] = hashes[keyFromCandidate(accountID, c)]
	}
	return flags, nil
}

// ClearCache drops the cached hash set so the next check re-reads the ledger.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedAccountID = nil
	d.cachedHashes = nil
}
