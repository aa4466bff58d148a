package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campuseats/meal-gateway/internal/repository"
	"github.com/campuseats/meal-gateway/pkg/pg"
	"github.com/campuseats/meal-gateway/pkg/redis"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.StudentEntity{},
		&repository.BookingEntity{},
		&repository.PaymentEntity{},
		&repository.TransactionEntity{},
		&repository.MealEntity{},
		&repository.MealAccessLogEntity{},
		&repository.RestaurantMetricEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestStudent(t *testing.T, db *pg.DB, id, balance string) *repository.StudentEntity {
	ctx := context.Background()
	student := &repository.StudentEntity{
		Model:          pg.Model{ID: id},
		UserID:         "user-" + id,
		RegistrationNo: "REG-" + id,
		FullName:       "Student " + id,
		Email:          id + "@campus.test",
		Balance:        decimal.RequireFromString(balance),
	}
	err := db.Write(ctx).Create(student).Error
	require.NoError(t, err)
	return student
}

func CreateTestBooking(t *testing.T, db *pg.DB, studentID, mealType, price, status string) *repository.BookingEntity {
	ctx := context.Background()
	booking := &repository.BookingEntity{
		StudentID: studentID,
		MealType:  mealType,
		Price:     decimal.RequireFromString(price),
		Status:    status,
	}
	err := db.Write(ctx).Create(booking).Error
	require.NoError(t, err)
	return booking
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
