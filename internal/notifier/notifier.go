// Package notifier consumes notification events emitted by the scheduling
// core and hands them to delivery channels. Rendering and transport live
// in the downstream messaging stack; this worker resolves the channel and
// records the dispatch.
package notifier

import (
	"context"
	"fmt"

	"slotwise/pkg/events"
	"slotwise/pkg/kafka"
	kafka_config "slotwise/pkg/kafka/config"
	kafka_middleware "slotwise/pkg/kafka/middleware"
	"slotwise/pkg/logger"
)

const ConsumerGroup = "scheduling-notifier"

type Worker struct {
	consumer *kafka.Consumer
	log      *logger.Logger
}

func NewWorker(cfg *kafka_config.Config, log *logger.Logger) (*Worker, error) {
	w := &Worker{log: log}

	consumer, err := kafka.NewConsumer(cfg, events.TopicNotifications, ConsumerGroup,
		events.TopicNotificationDLQ, w.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification consumer: %w", err)
	}

	if cfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware())
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	}

	w.consumer = consumer
	return w, nil
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	var event events.NotificationEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("undecodable notification event", err)
	}
	if event.Recipient == "" || event.TemplateKey == "" {
		return kafka.NewPermanentError("notification event missing recipient or template", nil)
	}

	switch event.Type {
	case events.NotificationEmail, events.NotificationPush:
	default:
		return kafka.NewPermanentError(fmt.Sprintf("unknown notification channel %q", event.Type), nil)
	}

	w.log.Info("Notification dispatched",
		"event_id", msg.GetEventID(),
		"channel", event.Type,
		"recipient", event.Recipient,
		"template_key", event.TemplateKey,
	)
	return nil
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Notification worker starting", "topic", events.TopicNotifications, "group", ConsumerGroup)
	return w.consumer.Start(ctx)
}

func (w *Worker) Close() error {
	return w.consumer.Close()
}
