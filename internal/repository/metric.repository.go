package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

// MetricRepository maintains the single revenue counter row. All
// increments go through an upsert so the row is created lazily on the
// first settled payment or top-up.
type MetricRepository struct {
	*pg.DB
}

func NewMetricRepository(db *pg.DB) *MetricRepository {
	return &MetricRepository{DB: db}
}

func (r *MetricRepository) IncrementRevenue(ctx context.Context, amount decimal.Decimal) error {
	return r.increment(ctx, "total_revenue", amount)
}

func (r *MetricRepository) IncrementTopUps(ctx context.Context, amount decimal.Decimal) error {
	return r.increment(ctx, "total_top_ups", amount)
}

func (r *MetricRepository) increment(ctx context.Context, column string, amount decimal.Decimal) error {
	entity := &RestaurantMetricEntity{
		ID:        model.MetricID,
		UpdatedAt: time.Now(),
	}
	switch column {
	case "total_revenue":
		entity.TotalRevenue = amount
	case "total_top_ups":
		entity.TotalTopUps = amount
	}
	return r.Write(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr("restaurant_metrics."+column+" + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(entity).Error
}

// Get returns nil without error when no payment has ever been settled.
func (r *MetricRepository) Get(ctx context.Context) (*model.RestaurantMetric, error) {
	var entity RestaurantMetricEntity
	err := r.Read(ctx).Where("id = ?", model.MetricID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRestaurantMetricModel(&entity), nil
}
