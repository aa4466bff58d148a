package notifier

import (
	"sync/atomic"
	"time"
)

type DispatchMetrics struct {
	totalDispatched int64
	totalFailed     int64
	totalSkipped    int64
	totalDurationNs int64
	lastResetNs     int64
}

func NewDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		lastResetNs: time.Now().UnixNano(),
	}
}

func (m *DispatchMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalDispatched, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *DispatchMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

// RecordSkip counts receipts dropped because they were already dispatched.
func (m *DispatchMetrics) RecordSkip() {
	atomic.AddInt64(&m.totalSkipped, 1)
}

func (m *DispatchMetrics) GetStats() map[string]interface{} {
	dispatched := atomic.LoadInt64(&m.totalDispatched)
	failed := atomic.LoadInt64(&m.totalFailed)
	skipped := atomic.LoadInt64(&m.totalSkipped)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	lastResetNs := atomic.LoadInt64(&m.lastResetNs)

	elapsed := time.Since(time.Unix(0, lastResetNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(dispatched) / elapsed
	}

	avgDuration := time.Duration(0)
	if dispatched > 0 {
		avgDuration = time.Duration(durationNs / dispatched)
	}

	return map[string]interface{}{
		"total_dispatched": dispatched,
		"total_failed":     failed,
		"total_skipped":    skipped,
		"rate_per_second":  rate,
		"avg_duration_ms":  avgDuration.Milliseconds(),
		"uptime_seconds":   elapsed,
	}
}

func (m *DispatchMetrics) Reset() {
	atomic.StoreInt64(&m.totalDispatched, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalSkipped, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
