package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
)

type PaymentRepository struct {
	*pg.DB
}

func NewPaymentRepository(db *pg.DB) *PaymentRepository {
	return &PaymentRepository{
		db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	entity := toPaymentEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentModel(entity), nil
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*model.Payment, error) {
	var entity PaymentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return toPaymentModel(&entity), nil
}

// Complete marks a pending payment COMPLETED with the resolved method,
// provider reference and the QR fields mirrored from the booking.
func (r *PaymentRepository) Complete(ctx context.Context, id string, method model.PaymentMethod, providerRef *string, qrCode string, qrExpiresAt time.Time) error {
	updates := map[string]interface{}{
		"status":        string(model.PaymentStatusCompleted),
		"method":        string(method),
		"qr_code":       qrCode,
		"qr_expires_at": qrExpiresAt,
	}
	if providerRef != nil && *providerRef != "" {
		updates["provider_ref"] = *providerRef
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&PaymentEntity{})

	if f.StudentID != nil && *f.StudentID != "" {
		q = q.Where("student_id = ?", *f.StudentID)
	}
	if f.BookingID != nil && *f.BookingID != "" {
		q = q.Where("booking_id = ?", *f.BookingID)
	}
	if f.Method != nil {
		q = q.Where("method = ?", string(*f.Method))
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("payment_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("payment_date < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*PaymentEntity
	if err := q.Order("payment_date DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPaymentModels(entities), total, nil
}
