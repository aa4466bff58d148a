package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/campuseats/meal-gateway/pkg/redis"
)

// Event is one receipt pulled off the stream. The consumer group keeps it
// pending until Ack, so a crashed consumer's events get reclaimed.
type Event struct {
	ID       string
	Data     []byte
	Attempts int
	acked    bool
	stream   *Stream
}

func (e *Event) Ack() error {
	if e.acked {
		return fmt.Errorf("event already acknowledged")
	}
	e.acked = true
	return e.stream.ack(e.ID)
}

func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EventHandler processes one event. A nil return acks the event; an error
// leaves it pending for a later claim.
type EventHandler func(ctx context.Context, event *Event) error

type StreamConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
}

// Stream is a redis-streams backed receipt channel with at-least-once
// delivery. Producers call PublishReceipt; the notifier consumes.
type Stream struct {
	adapter redis.RedisAdapter
	config  StreamConfig
	handler EventHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewStream(adapter redis.RedisAdapter, config StreamConfig) (*Stream, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "receipt-dispatchers"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Stream{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on an existing group is fine.
	_ = s.adapter.XGroupCreateMkStream(s.config.Name, s.config.ConsumerGroup, "0")

	return s, nil
}

func (s *Stream) PublishReceipt(ctx context.Context, receipt *Receipt) (string, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt: %w", err)
	}

	id, err := s.adapter.XAdd(s.config.Name, map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish receipt: %w", err)
	}

	if s.config.MaxLen > 0 {
		_ = s.adapter.XTrimApprox(s.config.Name, s.config.MaxLen)
	}

	return id, nil
}

// Consume starts the poll loop. Events that error are left pending and
// reclaimed once their visibility timeout lapses.
func (s *Stream) Consume(handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("event handler is required")
	}

	s.handler = handler
	s.wg.Add(1)

	go s.consumeLoop()

	return nil
}

func (s *Stream) consumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.processEvents()
			s.claimStuckEvents()
		}
	}
}

func (s *Stream) processEvents() {
	messages, err := s.adapter.XReadGroup(
		s.config.ConsumerGroup,
		s.config.ConsumerName,
		s.config.Name,
		">",
		s.config.BatchSize,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		s.handleEvent(s.toEvent(streamMsg))
	}
}

func (s *Stream) claimStuckEvents() {
	pending, err := s.adapter.XPendingExt(s.config.Name, s.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pending) == 0 {
		return
	}

	var idsToReclaim []string
	retries := make(map[string]int64, len(pending))
	for _, msg := range pending {
		if msg.Idle >= s.config.VisibilityTimeout {
			idsToReclaim = append(idsToReclaim, msg.ID)
			retries[msg.ID] = msg.RetryCount
		}
	}
	if len(idsToReclaim) == 0 {
		return
	}

	messages, err := s.adapter.XClaim(
		s.config.Name,
		s.config.ConsumerGroup,
		s.config.ConsumerName,
		s.config.VisibilityTimeout,
		idsToReclaim...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		event := s.toEvent(streamMsg)
		// Delivery count from the PEL, not a stream field: redis bumps it
		// on every claim, so repeated failures eventually hit MaxRetries.
		event.Attempts = int(retries[streamMsg.ID])
		s.handleEvent(event)
	}
}

func (s *Stream) handleEvent(event *Event) {
	if event.Attempts >= s.config.MaxRetries {
		// Give up on it rather than loop forever.
		_ = s.ack(event.ID)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.VisibilityTimeout)
	defer cancel()

	if err := s.handler(ctx, event); err != nil {
		return
	}
	_ = s.ack(event.ID)
}

func (s *Stream) ack(eventID string) error {
	return s.adapter.XAck(s.config.Name, s.config.ConsumerGroup, eventID)
}

func (s *Stream) toEvent(streamMsg redis.StreamMessage) *Event {
	event := &Event{
		ID:     streamMsg.ID,
		stream: s,
	}
	if data, ok := streamMsg.Values["data"].(string); ok {
		event.Data = []byte(data)
	}
	return event
}

func (s *Stream) Len() (int64, error) {
	return s.adapter.XLen(s.config.Name)
}

func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for stream consumer to stop")
	}
}
