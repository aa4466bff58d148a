package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/meal-gateway/internal/model"
)

func createTestBooking(t *testing.T, repo *BookingRepository, studentID string) *model.Booking {
	t.Helper()
	booking, err := repo.Create(context.Background(), &model.Booking{
		StudentID: studentID,
		MealType:  model.MealTypeLunch,
		Price:     decimal.RequireFromString("6.50"),
		Status:    model.BookingStatusPendingPayment,
	})
	require.NoError(t, err)
	require.NotEmpty(t, booking.ID)
	return booking
}

func TestBookingRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)

	booking := createTestBooking(t, repo, "s1")
	assert.Equal(t, model.BookingStatusPendingPayment, booking.Status)
	assert.Nil(t, booking.QRCode)
	assert.Nil(t, booking.QRExpiresAt)

	got, err := repo.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
	assert.Equal(t, model.MealTypeLunch, got.MealType)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("6.50")))
}

func TestBookingRepository_GetByID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookingRepository_MarkPaid(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("pending booking becomes paid", func(t *testing.T) {
		booking := createTestBooking(t, repo, "s1")
		expiresAt := time.Now().Add(30 * time.Minute)

		err := repo.MarkPaid(ctx, booking.ID, "QR-abc", expiresAt)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPaid, got.Status)
		require.NotNil(t, got.QRCode)
		assert.Equal(t, "QR-abc", *got.QRCode)
		require.NotNil(t, got.QRExpiresAt)
	})

	t.Run("second settlement attempt conflicts", func(t *testing.T) {
		booking := createTestBooking(t, repo, "s2")
		require.NoError(t, repo.MarkPaid(ctx, booking.ID, "QR-first", time.Now().Add(30*time.Minute)))

		err := repo.MarkPaid(ctx, booking.ID, "QR-second", time.Now().Add(30*time.Minute))
		assert.ErrorIs(t, err, ErrBookingStateConflict)

		got, err := repo.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, "QR-first", *got.QRCode)
	})

	t.Run("unknown booking conflicts", func(t *testing.T) {
		err := repo.MarkPaid(ctx, "missing", "QR-x", time.Now())
		assert.ErrorIs(t, err, ErrBookingStateConflict)
	})
}

func TestBookingRepository_MarkConsumed(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("paid booking becomes consumed", func(t *testing.T) {
		booking := createTestBooking(t, repo, "s1")
		require.NoError(t, repo.MarkPaid(ctx, booking.ID, "QR-1", time.Now().Add(30*time.Minute)))

		err := repo.MarkConsumed(ctx, booking.ID)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConsumed, got.Status)
	})

	t.Run("pending booking cannot be consumed", func(t *testing.T) {
		booking := createTestBooking(t, repo, "s2")

		err := repo.MarkConsumed(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrBookingStateConflict)
	})

	t.Run("double consumption conflicts", func(t *testing.T) {
		booking := createTestBooking(t, repo, "s3")
		require.NoError(t, repo.MarkPaid(ctx, booking.ID, "QR-3", time.Now().Add(30*time.Minute)))
		require.NoError(t, repo.MarkConsumed(ctx, booking.ID))

		err := repo.MarkConsumed(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrBookingStateConflict)
	})
}

func TestBookingRepository_GetByQRCode(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)
	ctx := context.Background()

	booking := createTestBooking(t, repo, "s1")
	require.NoError(t, repo.MarkPaid(ctx, booking.ID, "QR-lookup", time.Now().Add(30*time.Minute)))

	got, err := repo.GetByQRCode(ctx, "QR-lookup")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	_, err = repo.GetByQRCode(ctx, "QR-unknown")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookingRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBookingRepository(db)
	paymentRepo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx).Create(newTestStudent("s1", "u1", "20.00")).Error)
	require.NoError(t, db.Write(ctx).Create(newTestStudent("s2", "u2", "20.00")).Error)

	b1 := createTestBooking(t, repo, "s1")
	b2 := createTestBooking(t, repo, "s1")
	b3 := createTestBooking(t, repo, "s2")

	for _, b := range []*model.Booking{b1, b2, b3} {
		_, err := paymentRepo.Create(ctx, &model.Payment{
			StudentID: b.StudentID,
			BookingID: &b.ID,
			Amount:    b.Price,
			Method:    model.PaymentMethodMobileMoney,
			Status:    model.PaymentStatusPending,
		})
		require.NoError(t, err)
	}

	t.Run("all bookings with joined student and payment", func(t *testing.T) {
		rows, total, err := repo.List(ctx, model.BookingFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, rows, 3)

		for _, row := range rows {
			assert.Equal(t, model.PaymentStatusPending, row.PaymentStatus)
			assert.NotEmpty(t, row.StudentName)
			assert.NotEmpty(t, row.StudentEmail)
		}
	})

	t.Run("filter by student", func(t *testing.T) {
		studentID := "s2"
		rows, total, err := repo.List(ctx, model.BookingFilter{StudentID: &studentID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
		assert.Equal(t, b3.ID, rows[0].ID)
	})

	t.Run("limit caps the page", func(t *testing.T) {
		rows, total, err := repo.List(ctx, model.BookingFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, rows, 2)
	})
}
