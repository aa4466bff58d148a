package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type MealType string

const (
	MealTypeBreakfast   MealType = "BREAKFAST"
	MealTypeLunch       MealType = "LUNCH"
	MealTypeDinner      MealType = "DINNER"
	MealTypeLunchDinner MealType = "LUNCH_DINNER"
)

func (t MealType) Valid() bool {
	switch t {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeLunchDinner:
		return true
	}
	return false
}

// BookingStatus states form a one-way chain:
// PENDING_PAYMENT -> PAID -> CONSUMED. No transition ever reverses.
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusPaid           BookingStatus = "PAID"
	BookingStatusConsumed       BookingStatus = "CONSUMED"
)

type Booking struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	MealType     MealType        `json:"meal_type"`
	Price        decimal.Decimal `json:"price"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	Status       BookingStatus   `json:"status"`
	QRCode       *string         `json:"qr_code,omitempty"`
	QRExpiresAt  *time.Time      `json:"qr_expires_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (Booking) TableName() string { return "meal_bookings" }

// BookingCreateRequest is the input for creating a booking.
type BookingCreateRequest struct {
	StudentID     string
	MealType      MealType
	Price         decimal.Decimal
	ScheduledFor  *time.Time
	PaymentMethod PaymentMethod
}

func (p BookingCreateRequest) Validate() error {
	if p.StudentID == "" {
		return errors.New("student_id is required")
	}
	if !p.MealType.Valid() {
		return errors.New("meal_type is invalid")
	}
	if p.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if p.PaymentMethod != "" && !p.PaymentMethod.Valid() {
		return errors.New("payment method is invalid")
	}
	return nil
}

// BookingPayRequest is the optional input for settling a booking.
type BookingPayRequest struct {
	PaymentMethod     PaymentMethod
	ProviderReference string
}

// RedemptionResult is the outcome of a successful QR verification.
type RedemptionResult struct {
	BookingID string        `json:"booking_id"`
	StudentID string        `json:"student_id"`
	MealType  MealType      `json:"meal_type"`
	Status    BookingStatus `json:"status"`
	Access    AccessStatus  `json:"access"`
	ServedAt  time.Time     `json:"served_at"`
}

// BookingFilter controls ListBookings queries.
type BookingFilter struct {
	StudentID *string
	Limit     int // capped at 50, most-recent-first
}

// BookingWithPayment is the list-endpoint projection: booking plus the
// payment lifecycle status and the student identity it belongs to.
type BookingWithPayment struct {
	Booking
	PaymentStatus   PaymentStatus `json:"payment_status"`
	StudentName     string        `json:"student_name"`
	StudentEmail    string        `json:"student_email"`
	StudentRegistNo string        `json:"student_registration_no"`
}
