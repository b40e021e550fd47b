package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/pkg/events"
	"github.com/noah-isme/prhi-portal-api/pkg/jobs"
)

const eventJobType = "domain_event"

// EventService records inbox entries for affected users and ships domain events to the publisher.
type EventService struct {
	queue     *jobs.Queue
	publisher events.Publisher
	inbox     *InAppNotificationService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// EventConfig tunes the delivery queue.
type EventConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewEventService builds the service; call Start before emitting.
func NewEventService(publisher events.Publisher, inbox *InAppNotificationService, metrics *MetricsService, cfg EventConfig, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewNopPublisher(logger)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	s := &EventService{
		publisher: publisher,
		inbox:     inbox,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue("domain-events", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop: func(job jobs.Job, err error) {
			logger.Error("domain event dropped", zap.String("job_id", job.ID), zap.Error(err))
		},
	})
	return s
}

// Start launches the delivery workers.
func (s *EventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending events and closes the publisher.
func (s *EventService) Stop(ctx context.Context) error {
	s.queue.Stop(ctx)
	return s.publisher.Close()
}

// Emit notifies recipient in their inbox (when message is set) and queues the event for publishing.
func (s *EventService) Emit(eventType, key, recipient, message string, data map[string]string) {
	if s == nil {
		return
	}
	if recipient != "" && message != "" && s.inbox != nil {
		s.inbox.Add(recipient, message)
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: s.now().UTC(),
		Data:       data,
	}
	if err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: eventJobType, Payload: event}); err != nil {
		s.metrics.RecordEvent(eventType, err)
		s.logger.Warn("domain event not queued", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *EventService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(events.Event)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	err := s.publisher.Publish(ctx, event)
	s.metrics.RecordEvent(event.Type, err)
	return err
}
