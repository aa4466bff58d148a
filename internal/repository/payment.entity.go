package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type PaymentEntity struct {
	pg.Model
	StudentID   string          `db:"student_id"    gorm:"column:student_id;not null;index"`
	BookingID   *string         `db:"booking_id"    gorm:"column:booking_id;uniqueIndex"`
	Amount      decimal.Decimal `db:"amount"        gorm:"column:amount;type:decimal(10,2);not null"`
	Method      string          `db:"method"        gorm:"column:method;not null"`
	Status      string          `db:"status"        gorm:"column:status;not null;index"`
	ProviderRef *string         `db:"provider_ref"  gorm:"column:provider_ref"`
	QRCode      *string         `db:"qr_code"       gorm:"column:qr_code"`
	QRExpiresAt *time.Time      `db:"qr_expires_at" gorm:"column:qr_expires_at"`
	PaymentDate time.Time       `db:"payment_date"  gorm:"column:payment_date;autoCreateTime"`
}

func (PaymentEntity) TableName() string {
	return "payments"
}

func toPaymentEntity(m *model.Payment) *PaymentEntity {
	if m == nil {
		return nil
	}
	return &PaymentEntity{
		Model:       pg.Model{ID: m.ID},
		StudentID:   m.StudentID,
		BookingID:   m.BookingID,
		Amount:      m.Amount,
		Method:      string(m.Method),
		Status:      string(m.Status),
		ProviderRef: m.ProviderRef,
		QRCode:      m.QRCode,
		QRExpiresAt: m.QRExpiresAt,
		PaymentDate: m.PaymentDate,
	}
}

func toPaymentModel(e *PaymentEntity) *model.Payment {
	if e == nil {
		return nil
	}
	return &model.Payment{
		ID:          e.ID,
		StudentID:   e.StudentID,
		BookingID:   e.BookingID,
		Amount:      e.Amount,
		Method:      model.PaymentMethod(e.Method),
		Status:      model.PaymentStatus(e.Status),
		ProviderRef: e.ProviderRef,
		QRCode:      e.QRCode,
		QRExpiresAt: e.QRExpiresAt,
		PaymentDate: e.PaymentDate,
	}
}

func toPaymentModels(entities []*PaymentEntity) []*model.Payment {
	if entities == nil {
		return nil
	}
	models := make([]*model.Payment, len(entities))
	for i, e := range entities {
		models[i] = toPaymentModel(e)
	}
	return models
}
