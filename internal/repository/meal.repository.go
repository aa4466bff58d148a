package repository

import (
	"context"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type MealRepository struct {
	*pg.DB
}

func NewMealRepository(db *pg.DB) *MealRepository {
	return &MealRepository{DB: db}
}

// Create writes a served-meal record. Redemption inserts these with
// status INACTIVE so a meal row is never reusable.
func (r *MealRepository) Create(ctx context.Context, meal *model.Meal) (*model.Meal, error) {
	entity := toMealEntity(meal)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toMealModel(entity), nil
}

func (r *MealRepository) CreateAccessLog(ctx context.Context, accessLog *model.MealAccessLog) (*model.MealAccessLog, error) {
	entity := toMealAccessLogEntity(accessLog)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toMealAccessLogModel(entity), nil
}
