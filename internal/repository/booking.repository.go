package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingStateConflict means a guarded status flip matched no row:
	// somebody else moved the booking first.
	ErrBookingStateConflict = errors.New("booking is not in the required state")
)

// listBookingsMaxPage caps the list endpoint page size.
const listBookingsMaxPage = 50

type BookingRepository struct {
	*pg.DB
}

func NewBookingRepository(db *pg.DB) *BookingRepository {
	return &BookingRepository{
		db,
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	entity := toBookingEntity(b)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toBookingModel(entity), nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var entity BookingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return toBookingModel(&entity), nil
}

// GetByIDForUpdate locks the booking row for the rest of the enclosing
// transaction. Concurrent settlement attempts on the same booking serialize
// here, so only one of them can observe PENDING_PAYMENT.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	var entity BookingEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return toBookingModel(&entity), nil
}

func (r *BookingRepository) GetByQRCode(ctx context.Context, qrCode string) (*model.Booking, error) {
	var entity BookingEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("qr_code = ?", qrCode).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return toBookingModel(&entity), nil
}

// MarkPaid flips PENDING_PAYMENT -> PAID and stamps the QR fields. The
// update is guarded on the current status; zero rows affected means a
// concurrent writer got there first.
func (r *BookingRepository) MarkPaid(ctx context.Context, id, qrCode string, qrExpiresAt time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&BookingEntity{}).
		Where("id = ? AND status = ?", id, string(model.BookingStatusPendingPayment)).
		Updates(map[string]interface{}{
			"status":        string(model.BookingStatusPaid),
			"qr_code":       qrCode,
			"qr_expires_at": qrExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookingStateConflict
	}
	return nil
}

// MarkConsumed flips PAID -> CONSUMED. Same guarded-update discipline as
// MarkPaid: a second redemption of the same QR matches zero rows and fails.
func (r *BookingRepository) MarkConsumed(ctx context.Context, id string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&BookingEntity{}).
		Where("id = ? AND status = ?", id, string(model.BookingStatusPaid)).
		Update("status", string(model.BookingStatusConsumed))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookingStateConflict
	}
	return nil
}

// List returns bookings most-recent-first with the student identity and
// payment status joined in, optionally filtered by student.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter) ([]*model.BookingWithPayment, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Table("meal_bookings AS b").
		Select(`
            b.*,
            COALESCE(p.status, '') AS payment_status,
            s.full_name            AS full_name,
            s.email                AS email,
            s.registration_no      AS registration_no
        `).
		Joins("LEFT JOIN payments AS p ON p.booking_id = b.id").
		Joins("LEFT JOIN students AS s ON s.id = b.student_id")

	if f.StudentID != nil && *f.StudentID != "" {
		q = q.Where("b.student_id = ?", *f.StudentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > listBookingsMaxPage {
		limit = listBookingsMaxPage
	}

	var rows []*bookingListRow
	if err := q.Order("b.created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*model.BookingWithPayment, len(rows))
	for i, row := range rows {
		out[i] = toBookingWithPayment(row)
	}
	return out, total, nil
}
