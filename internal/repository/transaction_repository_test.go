package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/meal-gateway/internal/model"
)

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("debit row keeps balance snapshot", func(t *testing.T) {
		bookingID := "b1"
		balanceAfter := decimal.RequireFromString("18.50")

		txn, err := repo.Create(ctx, &model.Transaction{
			StudentID:    "s1",
			BookingID:    &bookingID,
			Type:         model.TransactionTypeDebit,
			Amount:       decimal.RequireFromString("6.50"),
			BalanceAfter: &balanceAfter,
			Remarks:      "Payment for LUNCH",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, txn.ID)
		require.NotNil(t, txn.BalanceAfter)
		assert.True(t, txn.BalanceAfter.Equal(balanceAfter))
		assert.False(t, txn.Date.IsZero())
	})

	t.Run("audit row carries no balance snapshot", func(t *testing.T) {
		mealID := "m1"

		txn, err := repo.Create(ctx, &model.Transaction{
			StudentID: "s1",
			MealID:    &mealID,
			Type:      model.TransactionTypeCredit,
			Amount:    decimal.RequireFromString("6.50"),
			Remarks:   "Meal served - LUNCH",
		})
		require.NoError(t, err)
		assert.Nil(t, txn.BalanceAfter)
	})
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	bookingID := "b1"
	paymentID := "p1"

	seed := []*model.Transaction{
		{StudentID: "s1", BookingID: &bookingID, Type: model.TransactionTypeDebit, Amount: decimal.RequireFromString("6.50"), Remarks: "Payment for LUNCH"},
		{StudentID: "s1", PaymentID: &paymentID, Type: model.TransactionTypeCredit, Amount: decimal.RequireFromString("25.00"), Remarks: "Top-up via MOBILE_MONEY"},
		{StudentID: "s2", Type: model.TransactionTypeCredit, Amount: decimal.RequireFromString("10.00"), Remarks: "Top-up via CASH"},
	}
	for _, txn := range seed {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("filter by student", func(t *testing.T) {
		studentID := "s1"
		rows, total, err := repo.List(ctx, model.TransactionFilter{StudentID: &studentID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, rows, 2)
	})

	t.Run("filter by type", func(t *testing.T) {
		credit := model.TransactionTypeCredit
		rows, total, err := repo.List(ctx, model.TransactionFilter{Type: &credit})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, row := range rows {
			assert.Equal(t, model.TransactionTypeCredit, row.Type)
		}
	})

	t.Run("filter by booking", func(t *testing.T) {
		rows, total, err := repo.List(ctx, model.TransactionFilter{BookingID: &bookingID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
		assert.Equal(t, "Payment for LUNCH", rows[0].Remarks)
	})

	t.Run("limit defaults apply", func(t *testing.T) {
		rows, total, err := repo.List(ctx, model.TransactionFilter{Limit: -1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, rows, 3)
	})
}
