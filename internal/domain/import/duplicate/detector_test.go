package duplicate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
)

type fakeLedger struct {
	entries map[uuid.UUID][]LedgerEntry
	calls   int
	err     error
}

func (f *fakeLedger) ListActiveEntries(_ context.Context, accountID uuid.UUID) ([]LedgerEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[accountID], nil
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestIsDuplicate_ExactMatch(t *testing.T) {
	accountID := uuid.New()
	ledger := &fakeLedger{entries: map[uuid.UUID][]LedgerEntry{
		accountID: {
			{TransactionDate: time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), Description: "Starbucks #123", Amount: -645},
		},
	}}
	det := NewDetector(ledger)

	dup, err := det.IsDuplicate(context.Background(), accountID, Candidate{
		TransactionDate: datePtr(2026, 1, 21),
		Description:     "  STARBUCKS #123 ", // case/whitespace insensitive
		TransactionType: parser.TypeDebit,
		Amount:          -645,
	})
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestIsDuplicate_AnyDifferingFieldBreaksMatch(t *testing.T) {
	accountID := uuid.New()
	base := LedgerEntry{
		TransactionDate: time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC),
		Description:     "coffee",
		Amount:          -645,
	}
	det := NewDetector(&fakeLedger{entries: map[uuid.UUID][]LedgerEntry{accountID: {base}}})

	tests := []struct {
		name      string
		candidate Candidate
	}{
		{"different amount", Candidate{TransactionDate: datePtr(2026, 1, 21), Description: "coffee", TransactionType: parser.TypeDebit, Amount: -646}},
		{"different date", Candidate{TransactionDate: datePtr(2026, 1, 22), Description: "coffee", TransactionType: parser.TypeDebit, Amount: -645}},
		{"different description", Candidate{TransactionDate: datePtr(2026, 1, 21), Description: "tea", TransactionType: parser.TypeDebit, Amount: -645}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup, err := det.IsDuplicate(context.Background(), accountID, tt.candidate)
			require.NoError(t, err)
			assert.False(t, dup)
		})
	}
}

func TestIsDuplicate_DifferentAccountIsNotDuplicate(t *testing.T) {
	accountID := uuid.New()
	otherID := uuid.New()
	ledger := &fakeLedger{entries: map[uuid.UUID][]LedgerEntry{
		accountID: {
			{TransactionDate: time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), Description: "coffee", Amount: -645},
		},
	}}
	det := NewDetector(ledger)

	dup, err := det.IsDuplicate(context.Background(), otherID, Candidate{
		TransactionDate: datePtr(2026, 1, 21),
		Description:     "coffee",
		TransactionType: parser.TypeDebit,
		Amount:          -645,
	})
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestCheckBatch_MissingDateNeverDuplicate(t *testing.T) {
	accountID := uuid.New()
	det := NewDetector(&fakeLedger{entries: map[uuid.UUID][]LedgerEntry{}})

	flags, err := det.CheckBatch(context.Background(), accountID, []Candidate{
		{TransactionDate: nil, Description: "coffee", TransactionType: parser.TypeDebit, Amount: -645},
	})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.False(t, flags[0])
}

func TestCheckBatch_CachesPerAccount(t *testing.T) {
	accountID := uuid.New()
	ledger := &fakeLedger{entries: map[uuid.UUID][]LedgerEntry{}}
	det := NewDetector(ledger)

	_, err := det.CheckBatch(context.Background(), accountID, nil)
	require.NoError(t, err)
	_, err = det.CheckBatch(context.Background(), accountID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.calls)

	// Switching accounts rebuilds the set.
	_, err = det.CheckBatch(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.calls)

	det.ClearCache()
	_, err = det.CheckBatch(context.Background(), accountID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.calls)
}

func TestIsDuplicate_TypeMismatchBreaksMatch(t *testing.T) {
	accountID := uuid.New()
	// Stored amount is positive, so the stored hash carries CREDIT.
	ledger := &fakeLedger{entries: map[uuid.UUID][]LedgerEntry{
		accountID: {
			{TransactionDate: time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), Description: "refund", Amount: 645},
		},
	}}
	det := NewDetector(ledger)

	dup, err := det.IsDuplicate(context.Background(), accountID, Candidate{
		TransactionDate: datePtr(2026, 1, 21),
		Description:     "refund",
		TransactionType: parser.TypeDebit,
		Amount:          645,
	})
	require.NoError(t, err)
	assert.False(t, dup)
}
