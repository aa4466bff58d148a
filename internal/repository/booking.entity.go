package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type BookingEntity struct {
	pg.Model
	StudentID    string          `db:"student_id"    gorm:"column:student_id;not null;index"`
	MealType     string          `db:"meal_type"     gorm:"column:meal_type;not null"`
	Price        decimal.Decimal `db:"price"         gorm:"column:price;type:decimal(10,2);not null"`
	ScheduledFor *time.Time      `db:"scheduled_for" gorm:"column:scheduled_for"`
	Status       string          `db:"status"        gorm:"column:status;not null;index"`
	QRCode       *string         `db:"qr_code"       gorm:"column:qr_code;uniqueIndex"`
	QRExpiresAt  *time.Time      `db:"qr_expires_at" gorm:"column:qr_expires_at"`
}

func (BookingEntity) TableName() string {
	return "meal_bookings"
}

func toBookingEntity(m *model.Booking) *BookingEntity {
	if m == nil {
		return nil
	}
	return &BookingEntity{
		Model:        pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		StudentID:    m.StudentID,
		MealType:     string(m.MealType),
		Price:        m.Price,
		ScheduledFor: m.ScheduledFor,
		Status:       string(m.Status),
		QRCode:       m.QRCode,
		QRExpiresAt:  m.QRExpiresAt,
	}
}

func toBookingModel(e *BookingEntity) *model.Booking {
	if e == nil {
		return nil
	}
	return &model.Booking{
		ID:           e.ID,
		StudentID:    e.StudentID,
		MealType:     model.MealType(e.MealType),
		Price:        e.Price,
		ScheduledFor: e.ScheduledFor,
		Status:       model.BookingStatus(e.Status),
		QRCode:       e.QRCode,
		QRExpiresAt:  e.QRExpiresAt,
		CreatedAt:    e.CreatedAt,
	}
}

// bookingListRow is the joined projection backing the list endpoint.
type bookingListRow struct {
	BookingEntity
	PaymentStatus  string `gorm:"column:payment_status"`
	FullName       string `gorm:"column:full_name"`
	Email          string `gorm:"column:email"`
	RegistrationNo string `gorm:"column:registration_no"`
}

func toBookingWithPayment(r *bookingListRow) *model.BookingWithPayment {
	return &model.BookingWithPayment{
		Booking:         *toBookingModel(&r.BookingEntity),
		PaymentStatus:   model.PaymentStatus(r.PaymentStatus),
		StudentName:     r.FullName,
		StudentEmail:    r.Email,
		StudentRegistNo: r.RegistrationNo,
	}
}
