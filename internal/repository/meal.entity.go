package repository

import (
	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type MealEntity struct {
	pg.Model
	UserID   string          `db:"user_id"   gorm:"column:user_id;not null;index"`
	MealType string          `db:"meal_type" gorm:"column:meal_type;not null"`
	Price    decimal.Decimal `db:"price"     gorm:"column:price;type:decimal(10,2);not null"`
	Status   string          `db:"status"    gorm:"column:status;not null"`
}

func (MealEntity) TableName() string {
	return "meals"
}

type MealAccessLogEntity struct {
	pg.Model
	StudentID string `db:"student_id" gorm:"column:student_id;not null;index"`
	MealID    string `db:"meal_id"    gorm:"column:meal_id;not null;index"`
	BookingID string `db:"booking_id" gorm:"column:booking_id;not null;index"`
	Status    string `db:"status"     gorm:"column:status;not null"`
}

func (MealAccessLogEntity) TableName() string {
	return "meal_access_logs"
}

func toMealEntity(m *model.Meal) *MealEntity {
	if m == nil {
		return nil
	}
	return &MealEntity{
		Model:    pg.Model{ID: m.ID},
		UserID:   m.UserID,
		MealType: string(m.MealType),
		Price:    m.Price,
		Status:   string(m.Status),
	}
}

func toMealModel(e *MealEntity) *model.Meal {
	if e == nil {
		return nil
	}
	return &model.Meal{
		ID:        e.ID,
		UserID:    e.UserID,
		MealType:  model.MealType(e.MealType),
		Price:     e.Price,
		Status:    model.MealStatus(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

func toMealAccessLogEntity(m *model.MealAccessLog) *MealAccessLogEntity {
	if m == nil {
		return nil
	}
	return &MealAccessLogEntity{
		Model:     pg.Model{ID: m.ID},
		StudentID: m.StudentID,
		MealID:    m.MealID,
		BookingID: m.BookingID,
		Status:    string(m.Status),
	}
}

func toMealAccessLogModel(e *MealAccessLogEntity) *model.MealAccessLog {
	if e == nil {
		return nil
	}
	return &model.MealAccessLog{
		ID:        e.ID,
		StudentID: e.StudentID,
		MealID:    e.MealID,
		BookingID: e.BookingID,
		Status:    model.AccessStatus(e.Status),
		CreatedAt: e.CreatedAt,
	}
}
