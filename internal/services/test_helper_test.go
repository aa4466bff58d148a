package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campuseats/meal-gateway/internal/model"
	"github.com/campuseats/meal-gateway/internal/repository"
	"github.com/campuseats/meal-gateway/pkg/pg"
)

type testEnv struct {
	db         *pg.DB
	bookings   *repository.BookingRepository
	payments   *repository.PaymentRepository
	students   *repository.StudentRepository
	txns       *repository.TransactionRepository
	meals      *repository.MealRepository
	metrics    *repository.MetricRepository
	bookingSvc *BookingService
	studentSvc *StudentService
	metricsSvc *MetricsService
}

func setupTestEnv(t *testing.T) *testEnv {
	raw, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = raw.AutoMigrate(
		&repository.StudentEntity{},
		&repository.BookingEntity{},
		&repository.PaymentEntity{},
		&repository.TransactionEntity{},
		&repository.MealEntity{},
		&repository.MealAccessLogEntity{},
		&repository.RestaurantMetricEntity{},
	)
	require.NoError(t, err)

	db := &pg.DB{}
	dbValue := reflect.ValueOf(db).Elem()
	for _, field := range []string{"read", "write"} {
		f := dbValue.FieldByName(field)
		f = reflect.NewAt(f.Type(), f.Addr().UnsafePointer()).Elem()
		f.Set(reflect.ValueOf(raw))
	}

	env := &testEnv{
		db:       db,
		bookings: repository.NewBookingRepository(db),
		payments: repository.NewPaymentRepository(db),
		students: repository.NewStudentRepository(db),
		txns:     repository.NewTransactionRepository(db),
		meals:    repository.NewMealRepository(db),
		metrics:  repository.NewMetricRepository(db),
	}
	env.bookingSvc = NewBookingService(env.bookings, env.payments, env.students, env.txns, env.meals, env.metrics, nil)
	env.studentSvc = NewStudentService(env.students, env.payments, env.txns, env.metrics)
	env.metricsSvc = NewMetricsService(env.metrics, env.students)
	return env
}

func (e *testEnv) seedStudent(t *testing.T, id, balance string) *model.Student {
	t.Helper()
	student, err := e.students.Create(context.Background(), &model.Student{
		ID:             id,
		UserID:         "user-" + id,
		RegistrationNo: "REG-" + id,
		FullName:       "Student " + id,
		Email:          id + "@campus.test",
		Balance:        decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return student
}
