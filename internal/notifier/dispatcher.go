package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campuseats/meal-gateway/internal/events"
	"github.com/campuseats/meal-gateway/pkg/logger"
	"github.com/campuseats/meal-gateway/pkg/prom"
	"github.com/campuseats/meal-gateway/pkg/redis"
	"github.com/campuseats/meal-gateway/pkg/worker"
)

const DispatchTimeout = 5 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

// ReceiptSender is what the dispatcher needs from the provider client.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, receipt *events.Receipt) (*SendResponse, error)
}

type DispatcherConfig struct {
	Stream        events.StreamConfig
	Consumers     int
	Workers       int
	WorkerBacklog int
}

// Dispatcher drains the receipt stream and fans deliveries out over a worker
// pool. Each receipt is sent at most once per dispatched marker; redelivered
// events short-circuit on the idempotency check.
type Dispatcher struct {
	adapter     redis.RedisAdapter
	config      DispatcherConfig
	streams     []*events.Stream
	sender      ReceiptSender
	idempotency *IdempotencyService
	metrics     *DispatchMetrics
	worker      *worker.Manager
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDispatcher(adapter redis.RedisAdapter, sender ReceiptSender, idempotency *IdempotencyService, config DispatcherConfig) *Dispatcher {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 10
	}
	if config.WorkerBacklog <= 0 {
		config.WorkerBacklog = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		adapter:     adapter,
		config:      config,
		streams:     make([]*events.Stream, 0, config.Consumers),
		sender:      sender,
		idempotency: idempotency,
		metrics:     NewDispatchMetrics(),
		worker:      worker.NewManager(config.WorkerBacklog, config.Workers, nil),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (d *Dispatcher) Start() error {
	logger.Info("Starting receipt dispatcher...")

	d.worker.SetWorker(d.workerHandler)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.worker.Start(); err != nil {
			logger.Error("Worker pool stopped", "error", err)
		}
	}()

	for i := 0; i < d.config.Consumers; i++ {
		streamConfig := d.config.Stream
		streamConfig.ConsumerName = fmt.Sprintf("%s-instance-%d", streamConfig.ConsumerName, i)

		stream, err := events.NewStream(d.adapter, streamConfig)
		if err != nil {
			return fmt.Errorf("failed to create stream consumer %d: %w", i, err)
		}

		if err := stream.Consume(d.eventHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		d.streams = append(d.streams, stream)
	}

	d.wg.Add(2)
	go d.metricsReporter()
	go d.healthChecker()

	logger.Info("Receipt dispatcher started", "consumers", len(d.streams), "workers", d.config.Workers)
	return nil
}

type dispatchJob struct {
	event      *events.Event
	resultChan chan error
	ctx        context.Context
}

// eventHandler hands the event to the worker pool and blocks for the result,
// so the stream's ack/retry decision follows the actual delivery outcome.
func (d *Dispatcher) eventHandler(ctx context.Context, event *events.Event) error {
	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, DispatchTimeout+time.Second)
	defer cancel()

	job := &dispatchJob{
		event:      event,
		resultChan: resultChan,
		ctx:        jobCtx,
	}

	d.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to dispatch receipt: %w", jobCtx.Err())
	}
}

func (d *Dispatcher) workerHandler(workerIndex int, job interface{}) {
	dispatch, ok := job.(*dispatchJob)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-dispatch.ctx.Done():
		logger.Warn("Job context cancelled before dispatch started", "worker", workerIndex)
		return
	default:
	}

	start := time.Now()
	resultErr := d.process(dispatch.ctx, dispatch.event)
	if resultErr != nil {
		d.metrics.RecordFailure()
		logger.Error("Failed to dispatch receipt", "worker", workerIndex, "error", resultErr)
	} else {
		d.metrics.RecordSuccess(time.Since(start))
	}

	select {
	case dispatch.resultChan <- resultErr:
	case <-dispatch.ctx.Done():
		logger.Warn("Context cancelled while sending result", "worker", workerIndex)
	}
}

// process performs one delivery with idempotency guarantees.
func (d *Dispatcher) process(ctx context.Context, event *events.Event) error {
	var receipt events.Receipt
	if err := event.Decode(&receipt); err != nil {
		logger.Error("Failed to decode receipt event", "error", err)
		// Malformed payload cannot succeed on retry; ack it away.
		return nil
	}

	dc, err := d.idempotency.AcquireDispatchLock(ctx, receipt.BookingID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			d.metrics.RecordSkip()
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Giving up on receipt", "booking_id", receipt.BookingID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("dispatch lock held by another consumer")
		}
		return err
	}
	defer d.idempotency.ReleaseLock(ctx, dc)

	res, err := d.sender.SendReceipt(ctx, &receipt)
	if err != nil {
		if markErr := d.idempotency.MarkFailure(ctx, dc, err); markErr != nil {
			logger.Error("Failed to mark dispatch failure", "booking_id", receipt.BookingID, "error", markErr)
		}
		return err
	}

	if res.Status != StatusSent {
		err := fmt.Errorf("provider returned status %s", res.Status)
		if markErr := d.idempotency.MarkFailure(ctx, dc, err); markErr != nil {
			logger.Error("Failed to mark dispatch failure", "booking_id", receipt.BookingID, "error", markErr)
		}
		return err
	}

	if markErr := d.idempotency.MarkSuccess(ctx, dc); markErr != nil {
		// The receipt went out; a missing marker only risks a duplicate.
		logger.Error("Failed to mark dispatch success", "booking_id", receipt.BookingID, "error", markErr)
	}

	prom.IncCounter(prom.SystemLedger, prom.MetricReceiptsDispatchedTotal)
	return nil
}

func (d *Dispatcher) metricsReporter() {
	defer d.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.reportMetrics()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) reportMetrics() {
	stats := d.metrics.GetStats()
	logger.Info("Dispatcher metrics",
		"total_dispatched", stats["total_dispatched"],
		"total_failed", stats["total_failed"],
		"total_skipped", stats["total_skipped"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"])

	for i, stream := range d.streams {
		if length, err := stream.Len(); err == nil {
			logger.Info("Stream stats", "stream", i, "length", length)
		}
	}
}

func (d *Dispatcher) healthChecker() {
	defer d.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.performHealthCheck()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) performHealthCheck() {
	if err := d.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}
	logger.Info("HEALTH CHECK: OK - dispatcher healthy")
}

func (d *Dispatcher) Stop() {
	logger.Info("Shutting down receipt dispatcher...")

	d.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(d.streams))

	for i, stream := range d.streams {
		go func(index int, s *events.Stream) {
			if err := s.Stop(timeout); err != nil {
				logger.Error("Error stopping stream", "stream", index, "error", err)
			}
			stopChan <- true
		}(i, stream)
	}

	for range d.streams {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("Timeout waiting for streams to stop")
		}
	}

	d.worker.Exit()
	d.wg.Wait()

	d.reportMetrics()
	logger.Info("Receipt dispatcher stopped")
}
