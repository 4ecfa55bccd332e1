package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/pkg/events"
	"github.com/noah-isme/train4best-api/pkg/jobs"
)

// Background job types handled by EventDispatcher.Handle.
const (
	JobPublishEvent   = "event.publish"
	JobExpireUnpaid   = "registrations.expire"
	JobCleanupExports = "exports.cleanup"
)

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type unpaidExpirer interface {
	Sweep(ctx context.Context) (int, error)
}

type exportCleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

type publishJob struct {
	Key   string
	Event events.Event
}

// EventDispatcher hands domain events to the background queue and runs queued jobs.
type EventDispatcher struct {
	publisher events.Publisher
	queue     jobEnqueuer
	expirer   unpaidExpirer
	cleaner   exportCleaner
	logger    *zap.Logger
}

// NewEventDispatcher constructs the dispatcher. Without a queue events are published inline.
func NewEventDispatcher(publisher events.Publisher, logger *zap.Logger) *EventDispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{publisher: publisher, logger: logger}
}

// UseQueue routes subsequent events through the queue.
func (d *EventDispatcher) UseQueue(queue jobEnqueuer) {
	d.queue = queue
}

// UseExpirer registers the service run by JobExpireUnpaid jobs.
func (d *EventDispatcher) UseExpirer(expirer unpaidExpirer) {
	d.expirer = expirer
}

// UseCleaner registers the service run by JobCleanupExports jobs.
func (d *EventDispatcher) UseCleaner(cleaner exportCleaner) {
	d.cleaner = cleaner
}

// RegistrationCreated publishes the event keyed by class id.
func (d *EventDispatcher) RegistrationCreated(ctx context.Context, evt dto.RegistrationCreatedEvent) {
	d.dispatch(ctx, evt.ClassID, events.TypeRegistrationCreated, evt)
}

// RegistrationExpired publishes the event keyed by class id.
func (d *EventDispatcher) RegistrationExpired(ctx context.Context, evt dto.RegistrationExpiredEvent) {
	d.dispatch(ctx, evt.ClassID, events.TypeRegistrationExpired, evt)
}

func (d *EventDispatcher) dispatch(ctx context.Context, key, eventType string, payload interface{}) {
	job := publishJob{Key: key, Event: events.Event{ID: uuid.NewString(), Type: eventType, Payload: payload}}
	if d.queue != nil {
		err := d.queue.TryEnqueue(jobs.Job{Type: JobPublishEvent, Payload: job})
		if err == nil {
			return
		}
		d.logger.Warn("event queue unavailable, publishing inline", zap.String("type", eventType), zap.Error(err))
	}
	if err := d.publisher.Publish(ctx, job.Key, job.Event); err != nil {
		d.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

// Handle is the jobs.Handler for the background queue.
func (d *EventDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobPublishEvent:
		payload, ok := job.Payload.(publishJob)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return d.publisher.Publish(ctx, payload.Key, payload.Event)
	case JobExpireUnpaid:
		if d.expirer == nil {
			return nil
		}
		_, err := d.expirer.Sweep(ctx)
		return err
	case JobCleanupExports:
		if d.cleaner == nil {
			return nil
		}
		_, err := d.cleaner.Cleanup(ctx)
		return err
	default:
		d.logger.Warn("dropping unknown job", zap.String("type", job.Type), zap.String("job_id", job.ID))
		return nil
	}
}
