package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMobileMoney, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment is created together with its booking and tracks the booking's
// payment state. Top-up payments carry no booking link.
type Payment struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	BookingID   *string         `json:"booking_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Status      PaymentStatus   `json:"status"`
	ProviderRef *string         `json:"provider_ref,omitempty"`
	QRCode      *string         `json:"qr_code,omitempty"`
	QRExpiresAt *time.Time      `json:"qr_expires_at,omitempty"`
	PaymentDate time.Time       `json:"payment_date"`
}

func (Payment) TableName() string { return "payments" }

// PaymentReceipt is what the settlement endpoint returns: the QR ticket
// plus the balance left after the debit.
type PaymentReceipt struct {
	BookingID        string          `json:"booking_id"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	QRCode           string          `json:"qr_code"`
	QRExpiresAt      time.Time       `json:"qr_expires_at"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// PaymentFilter controls payment list queries.
type PaymentFilter struct {
	StudentID *string
	BookingID *string
	Method    *PaymentMethod
	Status    *PaymentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
