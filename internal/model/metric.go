package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricID is the primary key of the single restaurant metric row.
const MetricID = "main"

// RestaurantMetric is a singleton aggregate updated via upsert-increment
// inside the same transaction as the event that moves the money.
type RestaurantMetric struct {
	ID           string          `json:"id"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalTopUps  decimal.Decimal `json:"total_top_ups"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (RestaurantMetric) TableName() string { return "restaurant_metrics" }

// FinanceSummary is the read-only rollup served to the finance endpoint.
// Always computed fresh at read time.
type FinanceSummary struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalTopUps     decimal.Decimal `json:"total_top_ups"`
	WalletLiability decimal.Decimal `json:"wallet_liability"`
	ActiveStudents  int64           `json:"active_students"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}
