package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
)

type RestaurantMetricEntity struct {
	ID           string          `db:"id"            gorm:"column:id;primaryKey"`
	TotalRevenue decimal.Decimal `db:"total_revenue" gorm:"column:total_revenue;type:decimal(12,2);not null;default:0"`
	TotalTopUps  decimal.Decimal `db:"total_top_ups" gorm:"column:total_top_ups;type:decimal(12,2);not null;default:0"`
	UpdatedAt    time.Time       `db:"updated_at"    gorm:"column:updated_at"`
}

func (RestaurantMetricEntity) TableName() string {
	return "restaurant_metrics"
}

func toRestaurantMetricModel(e *RestaurantMetricEntity) *model.RestaurantMetric {
	if e == nil {
		return nil
	}
	return &model.RestaurantMetric{
		ID:           e.ID,
		TotalRevenue: e.TotalRevenue,
		TotalTopUps:  e.TotalTopUps,
		UpdatedAt:    e.UpdatedAt,
	}
}
