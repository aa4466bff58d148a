package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/events"
	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/repository"
	"github.com/campuseats/meal-gateway/pkg/logger"
	"github.com/campuseats/meal-gateway/pkg/prom"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrStudentNotFound     = errors.New("student not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInsufficientBalance = errors.New("insufficient balance to pay for booking")
	ErrBookingNotPayable   = errors.New("booking is not awaiting payment")
	ErrMissingPayment      = errors.New("booking is missing payment record")
	ErrQRNotFound          = errors.New("qr code not recognized")
	ErrQRNotPaid           = errors.New("booking behind this qr code is not paid")
	ErrQRAlreadyUsed       = errors.New("qr code already redeemed")
	ErrQRExpired           = errors.New("qr code expired")
)

// qrValidity is how long a settlement QR stays redeemable.
const qrValidity = 30 * time.Minute

type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Booking, error)
	GetByQRCode(ctx context.Context, qrCode string) (*model.Booking, error)
	MarkPaid(ctx context.Context, id, qrCode string, qrExpiresAt time.Time) error
	MarkConsumed(ctx context.Context, id string) error
	List(ctx context.Context, f model.BookingFilter) ([]*model.BookingWithPayment, int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) (*model.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*model.Payment, error)
	Complete(ctx context.Context, id string, method model.PaymentMethod, providerRef *string, qrCode string, qrExpiresAt time.Time) error
	List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error)
}

type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByUserID(ctx context.Context, userID string) (*model.Student, error)
	DebitBalance(ctx context.Context, studentID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreditBalance(ctx context.Context, studentID string, amount decimal.Decimal) (decimal.Decimal, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type MealRepository interface {
	Create(ctx context.Context, meal *model.Meal) (*model.Meal, error)
	CreateAccessLog(ctx context.Context, accessLog *model.MealAccessLog) (*model.MealAccessLog, error)
}

type MetricRepository interface {
	IncrementRevenue(ctx context.Context, amount decimal.Decimal) error
	IncrementTopUps(ctx context.Context, amount decimal.Decimal) error
	Get(ctx context.Context) (*model.RestaurantMetric, error)
}

type BookingService struct {
	bookingRepo     BookingRepository
	paymentRepo     PaymentRepository
	studentRepo     StudentRepository
	transactionRepo TransactionRepository
	mealRepo        MealRepository
	metricRepo      MetricRepository
	receipts        events.ReceiptPublisher
}

func NewBookingService(
	bookingRepo BookingRepository,
	paymentRepo PaymentRepository,
	studentRepo StudentRepository,
	transactionRepo TransactionRepository,
	mealRepo MealRepository,
	metricRepo MetricRepository,
	receipts events.ReceiptPublisher,
) *BookingService {
	return &BookingService{
		bookingRepo:     bookingRepo,
		paymentRepo:     paymentRepo,
		studentRepo:     studentRepo,
		transactionRepo: transactionRepo,
		mealRepo:        mealRepo,
		metricRepo:      metricRepo,
		receipts:        receipts,
	}
}

// Create reserves a meal. The booking starts PENDING_PAYMENT with a PENDING
// payment record next to it; no money moves until Pay.
func (s *BookingService) Create(ctx context.Context, p model.BookingCreateRequest) (*model.Booking, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := s.studentRepo.GetByID(ctx, p.StudentID); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	method := p.PaymentMethod
	if method == "" {
		method = model.PaymentMethodMobileMoney
	}

	// Half-up to cents so price and every derived ledger amount agree.
	price := p.Price.Round(2)

	var createdBooking *model.Booking
	err := s.studentRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.bookingRepo.Create(ctx, &model.Booking{
			StudentID:    p.StudentID,
			MealType:     p.MealType,
			Price:        price,
			ScheduledFor: p.ScheduledFor,
			Status:       model.BookingStatusPendingPayment,
		})
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		createdBooking = created

		_, err = s.paymentRepo.Create(ctx, &model.Payment{
			StudentID: p.StudentID,
			BookingID: &created.ID,
			Amount:    price,
			Method:    method,
			Status:    model.PaymentStatusPending,
		})
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncCounter(prom.SystemBookings, prom.MetricBookingsCreatedTotal)
	return createdBooking, nil
}

// Pay settles a pending booking: debit the wallet, complete the payment,
// stamp the QR and append the ledger row, all in one transaction. The row
// lock on the booking serializes concurrent attempts so exactly one wins.
func (s *BookingService) Pay(ctx context.Context, bookingID string, p model.BookingPayRequest) (*model.PaymentReceipt, error) {
	if p.PaymentMethod != "" && !p.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: payment method is invalid", ErrInvalidRequest)
	}

	started := time.Now()
	qrCode := "QR-" + uuid.NewString()
	qrExpiresAt := time.Now().Add(qrValidity)

	var receipt *model.PaymentReceipt
	var student *model.Student
	var booking *model.Booking
	var settledMethod model.PaymentMethod

	err := s.studentRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("load booking: %w", err)
		}
		if booking.Status != model.BookingStatusPendingPayment {
			return ErrBookingNotPayable
		}

		payment, err := s.paymentRepo.GetByBookingID(ctx, booking.ID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return ErrMissingPayment
			}
			return fmt.Errorf("load payment: %w", err)
		}
		if payment.Status == model.PaymentStatusCompleted {
			return ErrBookingNotPayable
		}

		student, err = s.studentRepo.GetByID(ctx, booking.StudentID)
		if err != nil {
			return fmt.Errorf("load student: %w", err)
		}

		remaining, err := s.studentRepo.DebitBalance(ctx, booking.StudentID, booking.Price)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		method := p.PaymentMethod
		if method == "" {
			method = payment.Method
		}
		var providerRef *string
		if p.ProviderReference != "" {
			providerRef = &p.ProviderReference
		}
		if err := s.paymentRepo.Complete(ctx, payment.ID, method, providerRef, qrCode, qrExpiresAt); err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		settledMethod = method

		if err := s.bookingRepo.MarkPaid(ctx, booking.ID, qrCode, qrExpiresAt); err != nil {
			if errors.Is(err, repository.ErrBookingStateConflict) {
				return ErrBookingNotPayable
			}
			return fmt.Errorf("mark booking paid: %w", err)
		}

		_, err = s.transactionRepo.Create(ctx, &model.Transaction{
			StudentID:    booking.StudentID,
			BookingID:    &booking.ID,
			PaymentID:    &payment.ID,
			Type:         model.TransactionTypeDebit,
			Amount:       booking.Price,
			BalanceAfter: &remaining,
			Remarks:      "Payment for " + string(booking.MealType),
		})
		if err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if err := s.metricRepo.IncrementRevenue(ctx, booking.Price); err != nil {
			return fmt.Errorf("increment revenue: %w", err)
		}

		receipt = &model.PaymentReceipt{
			BookingID:        booking.ID,
			PaymentStatus:    model.PaymentStatusCompleted,
			QRCode:           qrCode,
			QRExpiresAt:      qrExpiresAt,
			RemainingBalance: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncCounter(prom.SystemBookings, prom.MetricPaymentsCompletedTotal)
	prom.ObservePaymentDuration(time.Since(started).Seconds(), string(settledMethod))

	s.publishReceipt(ctx, booking, student, receipt)

	return receipt, nil
}

// publishReceipt is fire-and-forget: the payment is already committed, a
// missed receipt must never surface as a settlement failure.
func (s *BookingService) publishReceipt(ctx context.Context, booking *model.Booking, student *model.Student, receipt *model.PaymentReceipt) {
	if s.receipts == nil {
		return
	}
	_, err := s.receipts.PublishReceipt(ctx, &events.Receipt{
		BookingID:    booking.ID,
		StudentID:    booking.StudentID,
		StudentName:  student.FullName,
		StudentEmail: student.Email,
		MealType:     string(booking.MealType),
		Amount:       booking.Price.StringFixed(2),
		QRCode:       receipt.QRCode,
		QRExpiresAt:  receipt.QRExpiresAt,
		PaidAt:       time.Now(),
	})
	if err != nil {
		logger.Error("failed to publish receipt event", "booking_id", booking.ID, "error", err)
	}
}

// Verify redeems a QR at the counter. Expiry is checked lazily against the
// stamp on the booking; nothing sweeps expired codes in the background.
func (s *BookingService) Verify(ctx context.Context, qrCode string) (*model.RedemptionResult, error) {
	booking, err := s.bookingRepo.GetByQRCode(ctx, qrCode)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, ErrQRNotFound
		}
		return nil, fmt.Errorf("load booking by qr: %w", err)
	}

	switch booking.Status {
	case model.BookingStatusConsumed:
		return nil, ErrQRAlreadyUsed
	case model.BookingStatusPaid:
	default:
		return nil, ErrQRNotPaid
	}
	if booking.QRExpiresAt != nil && booking.QRExpiresAt.Before(time.Now()) {
		return nil, ErrQRExpired
	}

	var result *model.RedemptionResult
	err = s.studentRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.bookingRepo.MarkConsumed(ctx, booking.ID); err != nil {
			if errors.Is(err, repository.ErrBookingStateConflict) {
				return ErrQRAlreadyUsed
			}
			return fmt.Errorf("mark booking consumed: %w", err)
		}

		student, err := s.studentRepo.GetByID(ctx, booking.StudentID)
		if err != nil {
			return fmt.Errorf("load student: %w", err)
		}

		meal, err := s.mealRepo.Create(ctx, &model.Meal{
			UserID:   student.UserID,
			MealType: booking.MealType,
			Price:    booking.Price,
			Status:   model.MealStatusInactive,
		})
		if err != nil {
			return fmt.Errorf("record served meal: %w", err)
		}

		_, err = s.mealRepo.CreateAccessLog(ctx, &model.MealAccessLog{
			StudentID: booking.StudentID,
			MealID:    meal.ID,
			BookingID: booking.ID,
			Status:    model.AccessStatusValid,
		})
		if err != nil {
			return fmt.Errorf("record access log: %w", err)
		}

		// Service audit row: the wallet was charged at payment time, so
		// this credit carries no balance snapshot.
		_, err = s.transactionRepo.Create(ctx, &model.Transaction{
			StudentID: booking.StudentID,
			BookingID: &booking.ID,
			MealID:    &meal.ID,
			Type:      model.TransactionTypeCredit,
			Amount:    booking.Price,
			Remarks:   "Meal served - " + string(booking.MealType),
		})
		if err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		result = &model.RedemptionResult{
			BookingID: booking.ID,
			StudentID: booking.StudentID,
			MealType:  booking.MealType,
			Status:    model.BookingStatusConsumed,
			Access:    model.AccessStatusValid,
			ServedAt:  time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncCounter(prom.SystemBookings, prom.MetricRedemptionsTotal)
	return result, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) List(ctx context.Context, f model.BookingFilter) ([]*model.BookingWithPayment, int64, error) {
	return s.bookingRepo.List(ctx, f)
}

func (s *BookingService) ListPayments(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	return s.paymentRepo.List(ctx, f)
}

func (s *BookingService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.List(ctx, f)
}
