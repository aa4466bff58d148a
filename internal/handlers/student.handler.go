package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	xhttp "github.com/campuseats/meal-gateway/pkg/http"
)

type StudentService interface {
	TopUp(ctx context.Context, p model.TopUpRequest) (*model.Transaction, error)
	Get(ctx context.Context, id string) (*model.Student, error)
	GetByUserID(ctx context.Context, userID string) (*model.Student, error)
}

type StudentHandler struct {
	svc StudentService
}

func RegisterStudentRoutes(e *router.Group, h *StudentHandler) {
	e.GET("/students/{id}", h.GetStudent)
	e.GET("/students/{id}/balance", h.GetBalance)
	e.POST("/students/{id}/topup", h.TopUp)
}

func NewStudentHandler(studentService StudentService) *StudentHandler {
	return &StudentHandler{
		svc: studentService,
	}
}

type topUpRequest struct {
	Amount  string `json:"amount"`
	Method  string `json:"method,omitempty"`
	Remarks string `json:"remarks,omitempty"`
}

type balanceResponse struct {
	StudentID string          `json:"student_id"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *StudentHandler) GetStudent(ctx *xhttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "student id is required")
		return
	}

	// by_user=true resolves the owning user id instead of the student id.
	var (
		student *model.Student
		err     error
	)
	if query(ctx, "by_user") == "true" {
		student, err = h.svc.GetByUserID(ctx, id)
	} else {
		student, err = h.svc.Get(ctx, id)
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, student)
}

func (h *StudentHandler) GetBalance(ctx *xhttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "student id is required")
		return
	}

	student, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, balanceResponse{StudentID: student.ID, Balance: student.Balance})
}

func (h *StudentHandler) TopUp(ctx *xhttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "student id is required")
		return
	}

	var req topUpRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid amount: "+req.Amount)
		return
	}

	txn, err := h.svc.TopUp(ctx, model.TopUpRequest{
		StudentID: id,
		Amount:    amount,
		Method:    model.PaymentMethod(req.Method),
		Remarks:   req.Remarks,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, txn)
}
