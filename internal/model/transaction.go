package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// Transaction is one immutable ledger entry. Rows are only ever appended.
// BalanceAfter snapshots the student balance right after the entry applied;
// it is nil for audit-only rows (meal service records) that move no money.
type Transaction struct {
	ID           string           `json:"id"`
	StudentID    string           `json:"student_id"`
	BookingID    *string          `json:"booking_id,omitempty"`
	PaymentID    *string          `json:"payment_id,omitempty"`
	MealID       *string          `json:"meal_id,omitempty"`
	Type         TransactionType  `json:"transaction_type"`
	Amount       decimal.Decimal  `json:"amount"`
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty"`
	Remarks      string           `json:"remarks"`
	Date         time.Time        `json:"transaction_date"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionFilter controls ledger list queries.
type TransactionFilter struct {
	StudentID *string
	BookingID *string
	PaymentID *string
	MealID    *string
	Type      *TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
