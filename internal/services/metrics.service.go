package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
)

type BalanceAggregator interface {
	AggregateBalances(ctx context.Context) (decimal.Decimal, int64, error)
}

type MetricsService struct {
	metricRepo MetricRepository
	balances   BalanceAggregator
}

func NewMetricsService(metricRepo MetricRepository, balances BalanceAggregator) *MetricsService {
	return &MetricsService{
		metricRepo: metricRepo,
		balances:   balances,
	}
}

// FinanceSummary rolls up the metric row with the outstanding wallet
// liability. Computed fresh on every call; nothing here is cached.
func (s *MetricsService) FinanceSummary(ctx context.Context) (*model.FinanceSummary, error) {
	summary := &model.FinanceSummary{
		TotalRevenue: decimal.Zero,
		TotalTopUps:  decimal.Zero,
	}

	metric, err := s.metricRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load restaurant metric: %w", err)
	}
	if metric != nil {
		summary.TotalRevenue = metric.TotalRevenue
		summary.TotalTopUps = metric.TotalTopUps
		updatedAt := metric.UpdatedAt
		summary.UpdatedAt = &updatedAt
	}

	liability, students, err := s.balances.AggregateBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances: %w", err)
	}
	summary.WalletLiability = liability
	summary.ActiveStudents = students

	return summary, nil
}
