package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MealStatus string

const (
	MealStatusActive   MealStatus = "ACTIVE"
	MealStatusInactive MealStatus = "INACTIVE"
)

type AccessStatus string

const (
	AccessStatusValid  AccessStatus = "VALID"
	AccessStatusDenied AccessStatus = "DENIED"
)

// Meal records a physically served meal. Rows exist only for redeemed
// bookings; the price is copied from the booking at redemption time.
type Meal struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	MealType  MealType        `json:"meal_type"`
	Price     decimal.Decimal `json:"price"`
	Status    MealStatus      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Meal) TableName() string { return "meals" }

// MealAccessLog links a redemption to the student, meal and booking involved.
// One row per successful QR verification.
type MealAccessLog struct {
	ID        string       `json:"id"`
	StudentID string       `json:"student_id"`
	MealID    string       `json:"meal_id"`
	BookingID string       `json:"booking_id"`
	Status    AccessStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

func (MealAccessLog) TableName() string { return "meal_access_logs" }
