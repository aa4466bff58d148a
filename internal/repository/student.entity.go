package repository

import (
	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type StudentEntity struct {
	pg.Model
	UserID         string          `db:"user_id"         gorm:"column:user_id;not null;uniqueIndex"`
	RegistrationNo string          `db:"registration_no" gorm:"column:registration_no"`
	FullName       string          `db:"full_name"       gorm:"column:full_name;not null"`
	Email          string          `db:"email"           gorm:"column:email;not null"`
	Balance        decimal.Decimal `db:"balance"         gorm:"column:balance;type:decimal(10,2);not null;default:0"`
}

func (StudentEntity) TableName() string {
	return "students"
}

func toStudentEntity(m *model.Student) *StudentEntity {
	if m == nil {
		return nil
	}
	return &StudentEntity{
		Model:          pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		UserID:         m.UserID,
		RegistrationNo: m.RegistrationNo,
		FullName:       m.FullName,
		Email:          m.Email,
		Balance:        m.Balance,
	}
}

func toStudentModel(e *StudentEntity) *model.Student {
	if e == nil {
		return nil
	}
	return &model.Student{
		ID:             e.ID,
		UserID:         e.UserID,
		RegistrationNo: e.RegistrationNo,
		FullName:       e.FullName,
		Email:          e.Email,
		Balance:        e.Balance,
		CreatedAt:      e.CreatedAt,
	}
}
