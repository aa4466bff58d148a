package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/repository"
)

func TestBookingService_Create(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedStudent(t, "s1", "25.00")

	t.Run("booking starts pending with a pending payment", func(t *testing.T) {
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPendingPayment, booking.Status)
		assert.Nil(t, booking.QRCode)

		payment, err := env.payments.GetByBookingID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, payment.Status)
		assert.Equal(t, model.PaymentMethodMobileMoney, payment.Method)
		assert.True(t, payment.Amount.Equal(booking.Price))

		// No money moved yet.
		balance, err := env.students.GetBalance(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("25.00")))
	})

	t.Run("price is rounded half-up to cents", func(t *testing.T) {
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  model.MealTypeDinner,
			Price:     decimal.RequireFromString("6.005"),
		})
		require.NoError(t, err)
		assert.Equal(t, "6.01", booking.Price.StringFixed(2))

		booking, err = env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  model.MealTypeDinner,
			Price:     decimal.RequireFromString("6.004"),
		})
		require.NoError(t, err)
		assert.Equal(t, "6.00", booking.Price.StringFixed(2))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "ghost",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})

	t.Run("invalid meal type", func(t *testing.T) {
		_, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  "BRUNCH",
			Price:     decimal.RequireFromString("6.50"),
		})
		assert.Error(t, err)
	})
}

func TestBookingService_Pay(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	t.Run("settlement debits wallet and issues qr", func(t *testing.T) {
		env.seedStudent(t, "s1", "25.00")
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)

		receipt, err := env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusCompleted, receipt.PaymentStatus)
		assert.Contains(t, receipt.QRCode, "QR-")
		assert.True(t, receipt.QRExpiresAt.After(time.Now().Add(29*time.Minute)))
		assert.Equal(t, "18.50", receipt.RemainingBalance.StringFixed(2))

		got, err := env.bookings.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPaid, got.Status)
		require.NotNil(t, got.QRCode)
		assert.Equal(t, receipt.QRCode, *got.QRCode)

		// Ledger row with balance snapshot.
		rows, _, err := env.txns.List(ctx, model.TransactionFilter{BookingID: &booking.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, model.TransactionTypeDebit, rows[0].Type)
		require.NotNil(t, rows[0].BalanceAfter)
		assert.Equal(t, "18.50", rows[0].BalanceAfter.StringFixed(2))
		assert.Equal(t, "Payment for LUNCH", rows[0].Remarks)

		// Revenue counter moved by exactly the price.
		metric, err := env.metrics.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, metric)
		assert.Equal(t, "6.50", metric.TotalRevenue.StringFixed(2))
	})

	t.Run("insufficient balance leaves everything untouched", func(t *testing.T) {
		env.seedStudent(t, "s2", "5.00")
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s2",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)

		_, err = env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := env.bookings.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPendingPayment, got.Status)
		assert.Nil(t, got.QRCode)

		payment, err := env.payments.GetByBookingID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, payment.Status)

		balance, err := env.students.GetBalance(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, "5.00", balance.StringFixed(2))
	})

	t.Run("double payment is rejected", func(t *testing.T) {
		env.seedStudent(t, "s3", "25.00")
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s3",
			MealType:  model.MealTypeBreakfast,
			Price:     decimal.RequireFromString("3.00"),
		})
		require.NoError(t, err)

		_, err = env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		require.NoError(t, err)

		_, err = env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		assert.ErrorIs(t, err, ErrBookingNotPayable)

		// Only one debit recorded.
		balance, err := env.students.GetBalance(ctx, "s3")
		require.NoError(t, err)
		assert.Equal(t, "22.00", balance.StringFixed(2))
	})

	t.Run("explicit method and provider reference", func(t *testing.T) {
		env.seedStudent(t, "s4", "25.00")
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s4",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)

		_, err = env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{
			PaymentMethod:     model.PaymentMethodCard,
			ProviderReference: "prov-123",
		})
		require.NoError(t, err)

		payment, err := env.payments.GetByBookingID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentMethodCard, payment.Method)
		require.NotNil(t, payment.ProviderRef)
		assert.Equal(t, "prov-123", *payment.ProviderRef)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := env.bookingSvc.Pay(ctx, "missing", model.BookingPayRequest{})
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("booking without a payment record", func(t *testing.T) {
		env.seedStudent(t, "s5", "25.00")
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s5",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)

		err = env.db.Write(ctx).
			Where("booking_id = ?", booking.ID).
			Delete(&repository.PaymentEntity{}).
			Error
		require.NoError(t, err)

		_, err = env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		assert.ErrorIs(t, err, ErrMissingPayment)

		// Wallet untouched.
		balance, err := env.students.GetBalance(ctx, "s5")
		require.NoError(t, err)
		assert.Equal(t, "25.00", balance.StringFixed(2))
	})
}

func TestBookingService_Verify(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	payForBooking := func(t *testing.T, studentID string) (*model.Booking, *model.PaymentReceipt) {
		t.Helper()
		booking, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: studentID,
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)
		receipt, err := env.bookingSvc.Pay(ctx, booking.ID, model.BookingPayRequest{})
		require.NoError(t, err)
		return booking, receipt
	}

	t.Run("valid qr consumes the booking", func(t *testing.T) {
		student := env.seedStudent(t, "s1", "25.00")
		booking, receipt := payForBooking(t, "s1")

		result, err := env.bookingSvc.Verify(ctx, receipt.QRCode)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, result.BookingID)
		assert.Equal(t, model.BookingStatusConsumed, result.Status)
		assert.Equal(t, model.AccessStatusValid, result.Access)

		got, err := env.bookings.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConsumed, got.Status)

		// Audit row: credit without a balance snapshot, balance untouched.
		rows, _, err := env.txns.List(ctx, model.TransactionFilter{BookingID: &booking.ID})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		var credit *model.Transaction
		for _, row := range rows {
			if row.Type == model.TransactionTypeCredit {
				credit = row
			}
		}
		require.NotNil(t, credit)
		assert.Nil(t, credit.BalanceAfter)
		assert.Equal(t, "Meal served - LUNCH", credit.Remarks)
		require.NotNil(t, credit.MealID)

		balance, err := env.students.GetBalance(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, "18.50", balance.StringFixed(2))
	})

	t.Run("qr is single use", func(t *testing.T) {
		env.seedStudent(t, "s2", "25.00")
		_, receipt := payForBooking(t, "s2")

		_, err := env.bookingSvc.Verify(ctx, receipt.QRCode)
		require.NoError(t, err)

		_, err = env.bookingSvc.Verify(ctx, receipt.QRCode)
		assert.ErrorIs(t, err, ErrQRAlreadyUsed)
	})

	t.Run("unknown qr", func(t *testing.T) {
		_, err := env.bookingSvc.Verify(ctx, "QR-bogus")
		assert.ErrorIs(t, err, ErrQRNotFound)
	})

	t.Run("expired qr is rejected", func(t *testing.T) {
		env.seedStudent(t, "s3", "25.00")
		booking, receipt := payForBooking(t, "s3")

		expired := time.Now().Add(-time.Minute)
		err := env.db.Write(ctx).
			Model(&model.Booking{}).
			Where("id = ?", booking.ID).
			Update("qr_expires_at", expired).
			Error
		require.NoError(t, err)

		_, err = env.bookingSvc.Verify(ctx, receipt.QRCode)
		assert.ErrorIs(t, err, ErrQRExpired)

		got, err := env.bookings.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPaid, got.Status)
	})
}

func TestBookingService_List(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.seedStudent(t, "s1", "25.00")
	for i := 0; i < 3; i++ {
		_, err := env.bookingSvc.Create(ctx, model.BookingCreateRequest{
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
		})
		require.NoError(t, err)
	}

	rows, total, err := env.bookingSvc.List(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "Student s1", row.StudentName)
		assert.Equal(t, model.PaymentStatusPending, row.PaymentStatus)
	}
}
