package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

// TransactionEntity rows are append-only. There is deliberately no update
// or delete path anywhere in this repository.
type TransactionEntity struct {
	pg.Model
	StudentID    string              `db:"student_id"       gorm:"column:student_id;not null;index"`
	BookingID    *string             `db:"booking_id"       gorm:"column:booking_id;index"`
	PaymentID    *string             `db:"payment_id"       gorm:"column:payment_id;index"`
	MealID       *string             `db:"meal_id"          gorm:"column:meal_id;index"`
	Type         string              `db:"transaction_type" gorm:"column:transaction_type;not null"`
	Amount       decimal.Decimal     `db:"amount"           gorm:"column:amount;type:decimal(10,2);not null"`
	BalanceAfter decimal.NullDecimal `db:"balance_after"    gorm:"column:balance_after;type:decimal(10,2)"`
	Remarks      string              `db:"remarks"          gorm:"column:remarks"`
	Date         time.Time           `db:"transaction_date" gorm:"column:transaction_date;autoCreateTime;index"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	balanceAfter := decimal.NullDecimal{}
	if m.BalanceAfter != nil {
		balanceAfter = decimal.NewNullDecimal(*m.BalanceAfter)
	}
	return &TransactionEntity{
		Model:        pg.Model{ID: m.ID},
		StudentID:    m.StudentID,
		BookingID:    m.BookingID,
		PaymentID:    m.PaymentID,
		MealID:       m.MealID,
		Type:         string(m.Type),
		Amount:       m.Amount,
		BalanceAfter: balanceAfter,
		Remarks:      m.Remarks,
		Date:         m.Date,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	var balanceAfter *decimal.Decimal
	if e.BalanceAfter.Valid {
		v := e.BalanceAfter.Decimal
		balanceAfter = &v
	}
	return &model.Transaction{
		ID:           e.ID,
		StudentID:    e.StudentID,
		BookingID:    e.BookingID,
		PaymentID:    e.PaymentID,
		MealID:       e.MealID,
		Type:         model.TransactionType(e.Type),
		Amount:       e.Amount,
		BalanceAfter: balanceAfter,
		Remarks:      e.Remarks,
		Date:         e.Date,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
