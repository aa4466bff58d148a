package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuseats/meal-gateway/internal/model"
)

var (
	TestStudent1 = model.Student{
		ID:             "11111111-1111-1111-1111-111111111111",
		UserID:         "user-1",
		RegistrationNo: "REG-0001",
		FullName:       "Ada Student",
		Email:          "ada@campus.test",
		Balance:        decimal.RequireFromString("100.00"),
	}

	TestStudent2 = model.Student{
		ID:             "22222222-2222-2222-2222-222222222222",
		UserID:         "user-2",
		RegistrationNo: "REG-0002",
		FullName:       "Grace Student",
		Email:          "grace@campus.test",
		Balance:        decimal.RequireFromString("50.00"),
	}

	TestStudentLowBalance = model.Student{
		ID:             "33333333-3333-3333-3333-333333333333",
		UserID:         "user-3",
		RegistrationNo: "REG-0003",
		FullName:       "Linus Student",
		Email:          "linus@campus.test",
		Balance:        decimal.RequireFromString("1.00"),
	}

	TestStudentZeroBalance = model.Student{
		ID:             "44444444-4444-4444-4444-444444444444",
		UserID:         "user-4",
		RegistrationNo: "REG-0004",
		FullName:       "Margaret Student",
		Email:          "margaret@campus.test",
		Balance:        decimal.Zero,
	}
)

func NewTestBookingCreateRequest(studentID string, mealType model.MealType, price string) model.BookingCreateRequest {
	return model.BookingCreateRequest{
		StudentID: studentID,
		MealType:  mealType,
		Price:     decimal.RequireFromString(price),
	}
}

func NewTestTopUpRequest(studentID, amount string) model.TopUpRequest {
	return model.TopUpRequest{
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
	}
}

func BookingCreateRequestLunch() model.BookingCreateRequest {
	return NewTestBookingCreateRequest(TestStudent1.ID, model.MealTypeLunch, "6.50")
}

func BookingCreateRequestDinner() model.BookingCreateRequest {
	return NewTestBookingCreateRequest(TestStudent1.ID, model.MealTypeDinner, "8.00")
}

func BookingCreateRequestInvalidMealType() model.BookingCreateRequest {
	return NewTestBookingCreateRequest(TestStudent1.ID, model.MealType("BRUNCH"), "6.50")
}

func BookingCreateRequestMissingStudent() model.BookingCreateRequest {
	return NewTestBookingCreateRequest("", model.MealTypeLunch, "6.50")
}

var ValidMealTypes = []model.MealType{
	model.MealTypeBreakfast,
	model.MealTypeLunch,
	model.MealTypeDinner,
	model.MealTypeLunchDinner,
}

var InvalidMealTypes = []model.MealType{
	"",
	"BRUNCH",
	"lunch",
	"SNACK",
}

func BookingFilterByStudent(studentID string) model.BookingFilter {
	return model.BookingFilter{
		StudentID: &studentID,
		Limit:     50,
	}
}

func TransactionFilterByTimeRange(studentID string, from, to time.Time) model.TransactionFilter {
	return model.TransactionFilter{
		StudentID: &studentID,
		From:      &from,
		To:        &to,
		Limit:     50,
	}
}
