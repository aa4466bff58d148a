package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
)

type StudentRepository struct {
	*pg.DB
}

func NewStudentRepository(db *pg.DB) *StudentRepository {
	return &StudentRepository{
		db,
	}
}

func (r *StudentRepository) Create(ctx context.Context, s *model.Student) (*model.Student, error) {
	entity := toStudentEntity(s)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toStudentModel(entity), nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var entity StudentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return toStudentModel(&entity), nil
}

func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*model.Student, error) {
	var entity StudentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return toStudentModel(&entity), nil
}

// DebitBalance atomically subtracts amount from the student's balance and
// returns the post-debit balance. The row is locked for the rest of the
// enclosing transaction, so read-check-write cannot interleave with a
// concurrent debit or credit on the same student.
func (r *StudentRepository) DebitBalance(ctx context.Context, studentID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var entity StudentEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", studentID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrStudentNotFound
		}
		return decimal.Zero, err
	}

	if entity.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientBalance
	}

	newBalance := entity.Balance.Sub(amount)

	result := r.Write(ctx).WithContext(ctx).
		Model(&StudentEntity{}).
		Where("id = ?", studentID).
		Update("balance", newBalance)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrConcurrentUpdate
	}

	return newBalance, nil
}

// CreditBalance atomically adds amount to the student's balance and returns
// the post-credit balance. Same locking discipline as DebitBalance.
func (r *StudentRepository) CreditBalance(ctx context.Context, studentID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var entity StudentEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", studentID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrStudentNotFound
		}
		return decimal.Zero, err
	}

	newBalance := entity.Balance.Add(amount)

	result := r.Write(ctx).WithContext(ctx).
		Model(&StudentEntity{}).
		Where("id = ?", studentID).
		Update("balance", newBalance)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrConcurrentUpdate
	}

	return newBalance, nil
}

func (r *StudentRepository) GetBalance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	var entity StudentEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("balance").
		Where("id = ?", studentID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrStudentNotFound
		}
		return decimal.Zero, err
	}
	return entity.Balance, nil
}

// AggregateBalances returns the sum of all student balances (the wallet
// liability) and the student count, both as of read time.
func (r *StudentRepository) AggregateBalances(ctx context.Context) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	err := r.Read(ctx).WithContext(ctx).
		Model(&StudentEntity{}).
		Select("COALESCE(SUM(balance), 0) AS total, COUNT(*) AS count").
		Scan(&row).
		Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return row.Total, row.Count, nil
}
