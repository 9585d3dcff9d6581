package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpow4/CoinPurse/internal/domain/import/duplicate"
	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
	"github.com/tpow4/CoinPurse/internal/domain/import/service"
)

type memoryLedger struct {
	entries []duplicate.LedgerEntry
}

func (m *memoryLedger) ListActiveEntries(context.Context, uuid.UUID) ([]duplicate.LedgerEntry, error) {
	return m.entries, nil
}

func TestDuplicateLookupSeesNewlyImportedTransactions(t *testing.T) {
	ledger := &memoryLedger{}
	lookup := &duplicateLookupAdapter{reader: ledger}
	accountID := uuid.New()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	candidates := []service.DuplicateCandidate{{
		TransactionDate: &date,
		Description:     "GROCERY STORE",
		TransactionType: parser.TypeDebit,
		Amount:          -5000,
	}}

	flags, err := lookup.CheckBatch(context.Background(), accountID, candidates)
	require.NoError(t, err)
	assert.False(t, flags[0], "first preview of an empty ledger has no duplicates")

	// Confirming the first preview lands the row in the ledger. A second
	// upload of the same file must flag it.
	ledger.entries = append(ledger.entries, duplicate.LedgerEntry{
		TransactionDate: date,
		Description:     "GROCERY STORE",
		Amount:          -5000,
	})

	flags, err = lookup.CheckBatch(context.Background(), accountID, candidates)
	require.NoError(t, err)
	assert.True(t, flags[0], "second preview must see the imported transaction")
}
