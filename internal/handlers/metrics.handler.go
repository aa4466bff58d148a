package handlers

import (
	"context"

	"github.com/fasthttp/router"

	"github.com/campuseats/meal-gateway/internal/model"
	xhttp "github.com/campuseats/meal-gateway/pkg/http"
)

type MetricsService interface {
	FinanceSummary(ctx context.Context) (*model.FinanceSummary, error)
}

type MetricsHandler struct {
	svc MetricsService
}

func RegisterMetricsRoutes(e *router.Group, h *MetricsHandler) {
	e.GET("/finance/summary", h.GetFinanceSummary)
}

func NewMetricsHandler(metricsService MetricsService) *MetricsHandler {
	return &MetricsHandler{
		svc: metricsService,
	}
}

func (h *MetricsHandler) GetFinanceSummary(ctx *xhttp.RequestCtx) {
	summary, err := h.svc.FinanceSummary(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, summary)
}
