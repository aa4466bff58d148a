package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/services"
	xhttp "github.com/campuseats/meal-gateway/pkg/http"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Create(ctx context.Context, p model.BookingCreateRequest) (*model.Booking, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingService) Pay(ctx context.Context, bookingID string, p model.BookingPayRequest) (*model.PaymentReceipt, error) {
	args := m.Called(ctx, bookingID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentReceipt), args.Error(1)
}

func (m *MockBookingService) Verify(ctx context.Context, qrCode string) (*model.RedemptionResult, error) {
	args := m.Called(ctx, qrCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RedemptionResult), args.Error(1)
}

func (m *MockBookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingService) List(ctx context.Context, f model.BookingFilter) ([]*model.BookingWithPayment, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.BookingWithPayment), args.Get(1).(int64), args.Error(2)
}

func (m *MockBookingService) ListPayments(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockBookingService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestBookingHandler_CreateBooking(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		bodyBytes, _ := json.Marshal(createBookingRequest{
			StudentID: "s1",
			MealType:  "LUNCH",
			Price:     decimal.RequireFromString("6.50"),
		})

		expected := &model.Booking{
			ID:        "b1",
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.50"),
			Status:    model.BookingStatusPendingPayment,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.BookingCreateRequest) bool {
			return p.StudentID == "s1" && p.MealType == model.MealTypeLunch && p.Price.Equal(decimal.RequireFromString("6.50"))
		})).Return(expected, nil)

		ctx := setupTestContext("POST", "/bookings", bodyBytes)
		handler.CreateBooking(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Booking
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "b1", response.ID)
		assert.Equal(t, model.BookingStatusPendingPayment, response.Status)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		ctx := setupTestContext("POST", "/bookings", []byte("not json"))
		handler.CreateBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("numeric price", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		expected := &model.Booking{
			ID:        "b2",
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Price:     decimal.RequireFromString("6.5"),
			Status:    model.BookingStatusPendingPayment,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.BookingCreateRequest) bool {
			return p.Price.Equal(decimal.RequireFromString("6.5"))
		})).Return(expected, nil)

		body := []byte(`{"student_id":"s1","meal_type":"LUNCH","price":6.5}`)
		ctx := setupTestContext("POST", "/bookings", body)
		handler.CreateBooking(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("bad price", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		body := []byte(`{"student_id":"s1","meal_type":"LUNCH","price":"six fifty"}`)
		ctx := setupTestContext("POST", "/bookings", body)
		handler.CreateBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("unknown student maps to 404", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		bodyBytes, _ := json.Marshal(createBookingRequest{
			StudentID: "ghost",
			MealType:  "LUNCH",
			Price:     decimal.RequireFromString("6.50"),
		})

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrStudentNotFound)

		ctx := setupTestContext("POST", "/bookings", bodyBytes)
		handler.CreateBooking(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestBookingHandler_PayBooking(t *testing.T) {
	t.Run("successful settlement", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		expected := &model.PaymentReceipt{
			BookingID:        "b1",
			PaymentStatus:    model.PaymentStatusCompleted,
			QRCode:           "QR-xyz",
			QRExpiresAt:      time.Now().Add(30 * time.Minute),
			RemainingBalance: decimal.RequireFromString("18.50"),
		}

		svc.On("Pay", mock.Anything, "b1", model.BookingPayRequest{}).Return(expected, nil)

		ctx := setupTestContext("POST", "/bookings/b1/pay", nil)
		ctx.SetUserValue("id", "b1")
		handler.PayBooking(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.PaymentReceipt
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "QR-xyz", response.QRCode)
		assert.Equal(t, model.PaymentStatusCompleted, response.PaymentStatus)

		svc.AssertExpectations(t)
	})

	t.Run("insufficient balance maps to 400", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		svc.On("Pay", mock.Anything, "b1", mock.Anything).Return(nil, services.ErrInsufficientBalance)

		ctx := setupTestContext("POST", "/bookings/b1/pay", nil)
		ctx.SetUserValue("id", "b1")
		handler.PayBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("already paid maps to 400", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		svc.On("Pay", mock.Anything, "b1", mock.Anything).Return(nil, services.ErrBookingNotPayable)

		ctx := setupTestContext("POST", "/bookings/b1/pay", nil)
		ctx.SetUserValue("id", "b1")
		handler.PayBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("missing payment record maps to 400", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		svc.On("Pay", mock.Anything, "b1", mock.Anything).Return(nil, services.ErrMissingPayment)

		ctx := setupTestContext("POST", "/bookings/b1/pay", nil)
		ctx.SetUserValue("id", "b1")
		handler.PayBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("missing booking id", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		ctx := setupTestContext("POST", "/bookings//pay", nil)
		handler.PayBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestBookingHandler_VerifyBooking(t *testing.T) {
	t.Run("valid qr", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		expected := &model.RedemptionResult{
			BookingID: "b1",
			StudentID: "s1",
			MealType:  model.MealTypeLunch,
			Status:    model.BookingStatusConsumed,
			Access:    model.AccessStatusValid,
			ServedAt:  time.Now(),
		}

		svc.On("Verify", mock.Anything, "QR-xyz").Return(expected, nil)

		bodyBytes, _ := json.Marshal(verifyBookingRequest{QRCode: "QR-xyz"})
		ctx := setupTestContext("POST", "/bookings/verify", bodyBytes)
		handler.VerifyBooking(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.RedemptionResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, model.BookingStatusConsumed, response.Status)
	})

	t.Run("unknown qr maps to 404", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		svc.On("Verify", mock.Anything, "QR-bogus").Return(nil, services.ErrQRNotFound)

		bodyBytes, _ := json.Marshal(verifyBookingRequest{QRCode: "QR-bogus"})
		ctx := setupTestContext("POST", "/bookings/verify", bodyBytes)
		handler.VerifyBooking(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("used qr maps to 400", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		svc.On("Verify", mock.Anything, "QR-used").Return(nil, services.ErrQRAlreadyUsed)

		bodyBytes, _ := json.Marshal(verifyBookingRequest{QRCode: "QR-used"})
		ctx := setupTestContext("POST", "/bookings/verify", bodyBytes)
		handler.VerifyBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("empty qr", func(t *testing.T) {
		svc := new(MockBookingService)
		handler := NewBookingHandler(svc)

		bodyBytes, _ := json.Marshal(verifyBookingRequest{})
		ctx := setupTestContext("POST", "/bookings/verify", bodyBytes)
		handler.VerifyBooking(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestBookingHandler_ListBookings(t *testing.T) {
	svc := new(MockBookingService)
	handler := NewBookingHandler(svc)

	items := []*model.BookingWithPayment{
		{
			Booking: model.Booking{
				ID:        "b1",
				StudentID: "s1",
				MealType:  model.MealTypeLunch,
				Price:     decimal.RequireFromString("6.50"),
				Status:    model.BookingStatusPaid,
			},
			PaymentStatus: model.PaymentStatusCompleted,
			StudentName:   "Ada Student",
		},
	}

	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.BookingFilter) bool {
		return f.StudentID != nil && *f.StudentID == "s1" && f.Limit == 10
	})).Return(items, int64(1), nil)

	ctx := setupTestContext("GET", "/bookings?student_id=s1&limit=10", nil)
	handler.ListBookings(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response bookingListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(1), response.Total)
	require.Len(t, response.Items, 1)
	assert.Equal(t, "Ada Student", response.Items[0].StudentName)

	svc.AssertExpectations(t)
}

func TestBookingHandler_ListTransactions(t *testing.T) {
	svc := new(MockBookingService)
	handler := NewBookingHandler(svc)

	balanceAfter := decimal.RequireFromString("18.50")
	items := []*model.Transaction{
		{
			ID:           "t1",
			StudentID:    "s1",
			Type:         model.TransactionTypeDebit,
			Amount:       decimal.RequireFromString("6.50"),
			BalanceAfter: &balanceAfter,
			Remarks:      "Payment for LUNCH",
		},
	}

	svc.On("ListTransactions", mock.Anything, mock.MatchedBy(func(f model.TransactionFilter) bool {
		return f.Type != nil && *f.Type == model.TransactionTypeDebit
	})).Return(items, int64(1), nil)

	ctx := setupTestContext("GET", "/transactions?type=DEBIT", nil)
	handler.ListTransactions(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response transactionListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(1), response.Total)
}
