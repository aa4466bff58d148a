package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/repository"
	"github.com/campuseats/meal-gateway/pkg/prom"
)

var ErrInvalidAmount = errors.New("top-up amount must be positive")

type StudentService struct {
	studentRepo     StudentRepository
	paymentRepo     PaymentRepository
	transactionRepo TransactionRepository
	metricRepo      MetricRepository
}

func NewStudentService(
	studentRepo StudentRepository,
	paymentRepo PaymentRepository,
	transactionRepo TransactionRepository,
	metricRepo MetricRepository,
) *StudentService {
	return &StudentService{
		studentRepo:     studentRepo,
		paymentRepo:     paymentRepo,
		transactionRepo: transactionRepo,
		metricRepo:      metricRepo,
	}
}

// TopUp credits a student's wallet. The payment record, balance credit and
// ledger row land in one transaction, so a partially applied top-up cannot
// be observed.
func (s *StudentService) TopUp(ctx context.Context, p model.TopUpRequest) (*model.Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	method := p.Method
	if method == "" {
		method = model.PaymentMethodMobileMoney
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: payment method is invalid", ErrInvalidRequest)
	}

	amount := p.Amount.Round(2)

	if _, err := s.studentRepo.GetByID(ctx, p.StudentID); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	var createdTxn *model.Transaction
	err := s.studentRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.paymentRepo.Create(ctx, &model.Payment{
			StudentID: p.StudentID,
			Amount:    amount,
			Method:    method,
			Status:    model.PaymentStatusCompleted,
		})
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		balance, err := s.studentRepo.CreditBalance(ctx, p.StudentID, amount)
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}

		remarks := p.Remarks
		if remarks == "" {
			remarks = "Top-up via " + string(method)
		}
		createdTxn, err = s.transactionRepo.Create(ctx, &model.Transaction{
			StudentID:    p.StudentID,
			PaymentID:    &payment.ID,
			Type:         model.TransactionTypeCredit,
			Amount:       amount,
			BalanceAfter: &balance,
			Remarks:      remarks,
		})
		if err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if err := s.metricRepo.IncrementTopUps(ctx, amount); err != nil {
			return fmt.Errorf("increment top-ups: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncCounter(prom.SystemLedger, prom.MetricTopUpsTotal)
	return createdTxn, nil
}

func (s *StudentService) Get(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*model.Student, error) {
	student, err := s.studentRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}
