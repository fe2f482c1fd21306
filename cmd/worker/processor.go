package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/notify"
)

// NotificationSender is the notifier surface the worker drives.
type NotificationSender interface {
	NotifyIfNew(ctx context.Context, orderID string) (notify.Outcome, error)
}

// Processor delivers pending notifications consumed from the queue.
type Processor struct {
	notifier NotificationSender
	logger   *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(notifier NotificationSender, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{notifier: notifier, logger: logger}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.logger.Info("received pending notifications", zap.Int("count", len(ev.Records)))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Returning the error hands retry/DLQ handling to the queue.
			p.logger.Warn("worker error", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg notify.PendingNotification
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	outcome, err := p.notifier.NotifyIfNew(ctx, msg.OrderID)
	p.logger.Info("pending notification processed",
		zap.String("order_id", msg.OrderID),
		zap.String("correlation_id", msg.CorrelationID),
		zap.String("outcome", string(outcome)))

	if outcome == notify.OutcomeFailed {
		return fmt.Errorf("notify %s: %w", msg.OrderID, err)
	}
	// Sent with a failed dedup-marker write is not worth a redelivery; the
	// message already reached the channel.
	return nil
}
