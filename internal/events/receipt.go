package events

import (
	"context"
	"time"
)

// Receipt is the payload published after a booking settles. Consumers send
// it to the student out of band; nothing in the payment path waits on them.
type Receipt struct {
	BookingID    string    `json:"booking_id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	MealType     string    `json:"meal_type"`
	Amount       string    `json:"amount"`
	QRCode       string    `json:"qr_code"`
	QRExpiresAt  time.Time `json:"qr_expires_at"`
	PaidAt       time.Time `json:"paid_at"`
}

// ReceiptPublisher is what the payment path depends on. Publish failures are
// logged and swallowed by the caller: a missed receipt never rolls back a
// settled payment.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, receipt *Receipt) (string, error)
}
