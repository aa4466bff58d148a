package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/services"
	xhttp "github.com/campuseats/meal-gateway/pkg/http"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type BookingService interface {
	Create(ctx context.Context, p model.BookingCreateRequest) (*model.Booking, error)
	Pay(ctx context.Context, bookingID string, p model.BookingPayRequest) (*model.PaymentReceipt, error)
	Verify(ctx context.Context, qrCode string) (*model.RedemptionResult, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]*model.BookingWithPayment, int64, error)
	ListPayments(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error)
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type BookingHandler struct {
	svc BookingService
}

func RegisterBookingRoutes(e *router.Group, h *BookingHandler) {
	e.POST("/bookings", h.CreateBooking)
	e.GET("/bookings", h.ListBookings)
	e.GET("/bookings/{id}", h.GetBooking)
	e.POST("/bookings/{id}/pay", h.PayBooking)
	e.POST("/bookings/verify", h.VerifyBooking)
	e.GET("/payments", h.ListPayments)
	e.GET("/transactions", h.ListTransactions)
}

func NewBookingHandler(bookingService BookingService) *BookingHandler {
	return &BookingHandler{
		svc: bookingService,
	}
}

type createBookingRequest struct {
	StudentID string `json:"student_id"`
	MealType  string `json:"meal_type"`
	// decimal accepts both a JSON number and a quoted string here.
	Price         decimal.Decimal `json:"price"`
	ScheduledFor  *string         `json:"scheduled_for,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

type payBookingRequest struct {
	PaymentMethod     string `json:"payment_method,omitempty"`
	ProviderReference string `json:"provider_reference,omitempty"`
}

type verifyBookingRequest struct {
	QRCode string `json:"qr_code"`
}

type bookingListResponse struct {
	Items []*model.BookingWithPayment `json:"items"`
	Total int64                       `json:"total"`
}

type paymentListResponse struct {
	Items []*model.Payment `json:"items"`
	Total int64            `json:"total"`
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *BookingHandler) CreateBooking(ctx *xhttp.RequestCtx) {
	var req createBookingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p := model.BookingCreateRequest{
		StudentID:     req.StudentID,
		MealType:      model.MealType(req.MealType),
		Price:         req.Price,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
	}
	if req.ScheduledFor != nil {
		t, err := parseTime(*req.ScheduledFor)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid scheduled_for: "+*req.ScheduledFor)
			return
		}
		p.ScheduledFor = &t
	}

	booking, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, booking)
}

func (h *BookingHandler) GetBooking(ctx *xhttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "booking id is required")
		return
	}

	booking, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, booking)
}

func (h *BookingHandler) PayBooking(ctx *xhttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "booking id is required")
		return
	}

	var req payBookingRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	receipt, err := h.svc.Pay(ctx, id, model.BookingPayRequest{
		PaymentMethod:     model.PaymentMethod(req.PaymentMethod),
		ProviderReference: req.ProviderReference,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, receipt)
}

func (h *BookingHandler) VerifyBooking(ctx *xhttp.RequestCtx) {
	var req verifyBookingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.QRCode == "" {
		writeError(ctx, xhttp.StatusBadRequest, "qr_code is required")
		return
	}

	result, err := h.svc.Verify(ctx, req.QRCode)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *BookingHandler) ListBookings(ctx *xhttp.RequestCtx) {
	var f model.BookingFilter

	if v := query(ctx, "student_id"); v != "" {
		f.StudentID = &v
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, bookingListResponse{Items: items, Total: total})
}

func (h *BookingHandler) ListPayments(ctx *xhttp.RequestCtx) {
	var f model.PaymentFilter

	if v := query(ctx, "student_id"); v != "" {
		f.StudentID = &v
	}
	if v := query(ctx, "booking_id"); v != "" {
		f.BookingID = &v
	}
	if v := query(ctx, "method"); v != "" {
		m := model.PaymentMethod(v)
		f.Method = &m
	}
	if v := query(ctx, "status"); v != "" {
		s := model.PaymentStatus(v)
		f.Status = &s
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.ListPayments(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, paymentListResponse{Items: items, Total: total})
}

func (h *BookingHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f model.TransactionFilter

	if v := query(ctx, "student_id"); v != "" {
		f.StudentID = &v
	}
	if v := query(ctx, "booking_id"); v != "" {
		f.BookingID = &v
	}
	if v := query(ctx, "payment_id"); v != "" {
		f.PaymentID = &v
	}
	if v := query(ctx, "type"); v != "" {
		tt := model.TransactionType(v)
		f.Type = &tt
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items, Total: total})
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrQRNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrBookingNotPayable),
		errors.Is(err, services.ErrMissingPayment),
		errors.Is(err, services.ErrQRAlreadyUsed),
		errors.Is(err, services.ErrQRExpired),
		errors.Is(err, services.ErrQRNotPaid),
		errors.Is(err, services.ErrInvalidAmount):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, pg.ErrTxTimeout):
		writeError(ctx, xhttp.StatusGatewayTimeout, err.Error())
	default:
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
