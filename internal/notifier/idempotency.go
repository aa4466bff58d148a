package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuseats/meal-gateway/pkg/logger"
	"github.com/campuseats/meal-gateway/pkg/redis"
)

var (
	ErrAlreadyDispatched  = errors.New("receipt already dispatched")
	ErrLockAcquireFailed  = errors.New("failed to acquire dispatch lock")
	ErrMaxRetriesExceeded = errors.New("maximum dispatch retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	DispatchedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	DispatchedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:             30 * time.Second,
		DispatchedTTL:       24 * time.Hour,
		MaxRetries:          3,
		RetryKeyPrefix:      "receipt:retry:",
		LockKeyPrefix:       "receipt:lock:",
		DispatchedKeyPrefix: "receipt:sent:",
	}
}

// IdempotencyService guards against sending the same receipt twice when an
// event is redelivered or two consumers race on a claim.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type DispatchContext struct {
	BookingID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *IdempotencyService) AcquireDispatchLock(ctx context.Context, bookingID string) (*DispatchContext, error) {
	dispatched, err := s.IsDispatched(ctx, bookingID)
	if err != nil {
		logger.Warn("Failed to check dispatched marker", "booking_id", bookingID, "error", err)
		// Better to risk a duplicate send than to block dispatch.
	} else if dispatched {
		return nil, ErrAlreadyDispatched
	}

	retryCount, err := s.GetRetryCount(ctx, bookingID)
	if err != nil {
		logger.Warn("Failed to read retry counter", "booking_id", bookingID, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		logger.Error("Max dispatch retries exceeded", "booking_id", bookingID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: booking_id=%s, retries=%d", ErrMaxRetriesExceeded, bookingID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + bookingID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	return &DispatchContext{
		BookingID:    bookingID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, dc *DispatchContext) error {
	dispatchedKey := s.config.DispatchedKeyPrefix + dc.BookingID
	if err := s.redis.Set(dispatchedKey, []byte("1"), s.config.DispatchedTTL); err != nil {
		logger.Error("Failed to mark receipt dispatched", "booking_id", dc.BookingID, "error", err)
		return fmt.Errorf("failed to mark as dispatched: %w", err)
	}

	s.cleanup(dc)
	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DispatchContext, reason error) error {
	retryKey := s.config.RetryKeyPrefix + dc.BookingID
	newRetryCount := dc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	if err := s.redis.Set(retryKey, retryValue, s.config.DispatchedTTL); err != nil {
		logger.Error("Failed to increment retry counter", "booking_id", dc.BookingID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + dc.BookingID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove lock", "booking_id", dc.BookingID, "error", err)
	}
	dc.lockAcquired = false

	logger.Warn("Receipt dispatch failed, will retry",
		"booking_id", dc.BookingID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DispatchContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.BookingID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release lock", "booking_id", dc.BookingID, "error", err)
		return err
	}

	dc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(dc *DispatchContext) {
	lockKey := s.config.LockKeyPrefix + dc.BookingID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to cleanup lock", "booking_id", dc.BookingID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + dc.BookingID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("Failed to cleanup retry counter", "booking_id", dc.BookingID, "error", err)
	}

	dc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, bookingID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + bookingID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDispatched(ctx context.Context, bookingID string) (bool, error) {
	dispatchedKey := s.config.DispatchedKeyPrefix + bookingID
	_, err := s.redis.Get(dispatchedKey)
	if err != nil {
		if err == redis.NilError {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
