package events

import (
	"context"
	"time"

	"slotwise/pkg/kafka"
	kafka_config "slotwise/pkg/kafka/config"
	kafka_middleware "slotwise/pkg/kafka/middleware"
	"slotwise/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Publisher emits schedule and notification events. Every publish is
// fire-and-forget: it runs on its own timeout, detached from the request
// context, and failures are logged, never returned. Events must only be
// published after the transaction that produced them has committed.
type Publisher struct {
	schedules     *kafka.Producer
	notifications *kafka.Producer
	log           *logger.Logger
	source        string
}

func NewPublisher(cfg *kafka_config.Config, log *logger.Logger, source string) (*Publisher, error) {
	schedules, err := kafka.NewProducer(cfg, TopicScheduleEvents, TopicScheduleDLQ)
	if err != nil {
		return nil, err
	}
	notifications, err := kafka.NewProducer(cfg, TopicNotifications, TopicNotificationDLQ)
	if err != nil {
		schedules.Close()
		return nil, err
	}

	if cfg.EnableMiddleware {
		for _, p := range []*kafka.Producer{schedules, notifications} {
			p.Use(kafka_middleware.LoggingProducerMiddleware())
			p.Use(kafka_middleware.MetricsProducerMiddleware())
		}
	}

	return &Publisher{
		schedules:     schedules,
		notifications: notifications,
		log:           log,
		source:        source,
	}, nil
}

// PublishSchedule emits a schedule lifecycle event keyed by provider so all
// events of one provider stay ordered.
func (p *Publisher) PublishSchedule(event ScheduleEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	msg := kafka.NewMessage().
		WithKey(event.ProviderID).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithSource(p.source).
		Build()

	if err := p.schedules.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish schedule event",
			"event_type", event.Type,
			"schedule_id", event.ScheduleID,
			"error", err,
		)
	}
}

// PublishNotification emits a notification request keyed by recipient.
func (p *Publisher) PublishNotification(event NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	msg := kafka.NewMessage().
		WithKey(event.Recipient).
		WithValue(event).
		WithEventType(event.TemplateKey).
		WithSource(p.source).
		Build()

	if err := p.notifications.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish notification event",
			"template_key", event.TemplateKey,
			"recipient", event.Recipient,
			"error", err,
		)
	}
}

func (p *Publisher) Close() error {
	err := p.schedules.Close()
	if nErr := p.notifications.Close(); err == nil {
		err = nErr
	}
	return err
}
