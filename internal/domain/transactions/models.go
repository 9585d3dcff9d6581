// Package transactions reads and maintains the ledger rows produced by
// imports and manual entry.
package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/pkg/money"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypePayment    TransactionType = "payment"
	TypeRefund     TransactionType = "refund"
	TypeTransfer   TransactionType = "transfer"
	TypeFee        TransactionType = "fee"
	TypeInterest   TransactionType = "interest"
	TypeAdjustment TransactionType = "adjustment"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDeposit    TransactionType = "deposit"
)

// ValidType reports whether t is a known transaction type.
func ValidType(t TransactionType) bool {
	switch t {
	case TypePurchase, TypePayment, TypeRefund, TypeTransfer, TypeFee,
		TypeInterest, TypeAdjustment, TypeWithdrawal, TypeDeposit:
		return true
	}
	return false
}

// Transaction is one ledger row. Amount is in minor units, negative for money
// leaving the account.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       uuid.UUID       `json:"account_id"`
	CategoryID      uuid.UUID       `json:"category_id"`
	ImportBatchID   *uuid.UUID      `json:"import_batch_id,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
	PostedDate      time.Time       `json:"posted_date"`
	Description     string          `json:"description"`
	Amount          int64           `json:"amount"`
	TransactionType TransactionType `json:"transaction_type"`
	BankCategory    *string         `json:"bank_category,omitempty"`
	ImportedAt      *time.Time      `json:"imported_at,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DisplayAmount renders the amount for the given currency, e.g. "-$12.34".
func (t *Transaction) DisplayAmount(currencyCode string) string {
	return money.Format(t.Amount, currencyCode)
}
