package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeliveryStatus represents the delivery status of a receipt notification
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "SENT"
	StatusFailed  DeliveryStatus = "FAILED"
	StatusPending DeliveryStatus = "PENDING"
)

// SendReceiptRequest represents the request to deliver a receipt
type SendReceiptRequest struct {
	BookingID    string `json:"booking_id" binding:"required"`
	StudentEmail string `json:"student_email" binding:"required"`
	StudentName  string `json:"student_name"`
	MealType     string `json:"meal_type"`
	Amount       string `json:"amount"`
	QRCode       string `json:"qr_code" binding:"required"`
}

// SendReceiptResponse represents the response from delivering a receipt
type SendReceiptResponse struct {
	BookingID   string         `json:"booking_id"`
	Status      DeliveryStatus `json:"status"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	ProviderID  string         `json:"provider_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockProvider simulates a receipt notification provider
type MockProvider struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	rng          *rand.Rand
}

// NewMockProvider creates a new mock provider instance
func NewMockProvider(deliveryRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// simulateDelivery simulates delivering a receipt to the student
func (m *MockProvider) simulateDelivery(req *SendReceiptRequest) *SendReceiptResponse {
	time.Sleep(m.randomDelay())

	response := &SendReceiptResponse{
		BookingID:   req.BookingID,
		ProviderID:  m.providerID,
		ProcessedAt: time.Now(),
	}

	if m.shouldSucceed() {
		now := time.Now()
		response.Status = StatusSent
		response.SentAt = &now

		log.Info().
			Str("booking_id", req.BookingID).
			Str("email", req.StudentEmail).
			Str("meal_type", req.MealType).
			Msg("Receipt delivered successfully")
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("booking_id", req.BookingID).
			Str("email", req.StudentEmail).
			Str("error_code", response.ErrorCode).
			Msg("Receipt delivery failed")
	}

	return response
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_EMAIL",
		"NETWORK_ERROR",
		"TIMEOUT",
		"MAILBOX_FULL",
		"PROVIDER_REJECTED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_EMAIL":     "The student email address is invalid",
		"NETWORK_ERROR":     "Network connectivity issue with provider",
		"TIMEOUT":           "Receipt delivery timed out",
		"MAILBOX_FULL":      "The recipient mailbox is full",
		"PROVIDER_REJECTED": "Provider rejected the receipt",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

// SendReceipt handles receipt delivery requests
func (h *Handler) SendReceipt(c *gin.Context) {
	var req SendReceiptRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("booking_id", req.BookingID).
		Str("email", req.StudentEmail).
		Msg("Received receipt delivery request")

	response := h.provider.simulateDelivery(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusAccepted // 202: accepted but failed delivery
	}

	c.JSON(statusCode, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.provider.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
	})
}

// UpdateConfig allows changing provider configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.provider.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.provider.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/receipts/send", handler.SendReceipt)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Receipt Provider")

	provider := NewMockProvider(deliveryRate, minDelay, maxDelay)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
