package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/campuseats/meal-gateway/internal/events"
	"github.com/campuseats/meal-gateway/pkg/logger"
)

var ErrProviderUnavailable = errors.New("notification provider unavailable")

type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "SENT"
	StatusFailed  DeliveryStatus = "FAILED"
	StatusPending DeliveryStatus = "PENDING"
)

type SendRequest struct {
	BookingID    string `json:"booking_id"`
	StudentEmail string `json:"student_email"`
	StudentName  string `json:"student_name"`
	MealType     string `json:"meal_type"`
	Amount       string `json:"amount"`
	QRCode       string `json:"qr_code"`
}

type SendResponse struct {
	BookingID string         `json:"booking_id"`
	Status    DeliveryStatus `json:"status"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	ErrorMsg  string         `json:"error_message,omitempty"`
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	MaxConns   int
}

// Client talks to the notification provider over HTTP. It tracks consecutive
// failures so the dispatcher can surface an unhealthy provider early.
type Client struct {
	config           *ClientConfig
	httpClient       *fasthttp.Client
	totalRequests    atomic.Int64
	successfulReqs   atomic.Int64
	failedReqs       atomic.Int64
	consecutiveFails atomic.Int32
}

func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("provider base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 200 * time.Millisecond
	}

	client := &Client{
		config: config,
		httpClient: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}

	logger.Info("Notification provider client initialized", "url", config.BaseURL, "timeout", config.Timeout)

	return client, nil
}

// SendReceipt delivers one receipt, retrying transient failures.
func (c *Client) SendReceipt(ctx context.Context, receipt *events.Receipt) (*SendResponse, error) {
	reqBody, err := json.Marshal(&SendRequest{
		BookingID:    receipt.BookingID,
		StudentEmail: receipt.StudentEmail,
		StudentName:  receipt.StudentName,
		MealType:     receipt.MealType,
		Amount:       receipt.Amount,
		QRCode:       receipt.QRCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, "POST", "/api/v1/receipts/send", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			c.recordFailure()
			logger.Warn("Receipt delivery failed, retrying", "error", err, "booking_id", receipt.BookingID, "attempt", attempt+1)
			lastErr = err
			continue
		}

		c.recordSuccess()

		var resp SendResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		logger.Info("Receipt delivered to provider", "booking_id", receipt.BookingID, "status", string(resp.Status), "latency_ms", latency)

		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// Healthy probes the provider's health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	response, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) recordSuccess() {
	c.totalRequests.Add(1)
	c.successfulReqs.Add(1)
	c.consecutiveFails.Store(0)
}

func (c *Client) recordFailure() {
	c.totalRequests.Add(1)
	c.failedReqs.Add(1)
	c.consecutiveFails.Add(1)
}

// Stats reports the request counters since start.
func (c *Client) Stats() (total, successful, failed int64, consecutiveFails int32) {
	return c.totalRequests.Load(), c.successfulReqs.Load(), c.failedReqs.Load(), c.consecutiveFails.Load()
}
