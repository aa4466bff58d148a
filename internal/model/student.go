package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student holds the spendable meal-credit balance of one user. The balance
// is only ever mutated through repository debit/credit operations that run
// inside a store transaction.
type Student struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	RegistrationNo string          `json:"registration_no"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (Student) TableName() string { return "students" }

// TopUpRequest is the input for crediting a student's balance.
type TopUpRequest struct {
	StudentID string
	Amount    decimal.Decimal
	Method    PaymentMethod
	Remarks   string
}
