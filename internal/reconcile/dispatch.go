package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/aws"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/notify"
)

// QueueDispatcher enqueues pending notifications on SQS for the worker to
// deliver. Queue-side retries replace the lost-retry gap of pure
// poll-to-poll differencing.
type QueueDispatcher struct {
	publisher *aws.Publisher
	nowFunc   func() time.Time
}

// NewQueueDispatcher returns a QueueDispatcher over publisher.
func NewQueueDispatcher(publisher *aws.Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher, nowFunc: time.Now}
}

// Dispatch enqueues one pending notification.
func (d *QueueDispatcher) Dispatch(ctx context.Context, orderID string) error {
	msg := notify.PendingNotification{
		OrderID:       orderID,
		DetectedAt:    d.nowFunc(),
		CorrelationID: uuid.NewString(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal pending notification: %w", err)
	}
	attrs := map[string]string{
		"order_id":       orderID,
		"correlation_id": msg.CorrelationID,
	}
	return d.publisher.SendPendingNotification(ctx, string(body), attrs)
}

// InlineDispatcher sends notifications directly from the sync loop. Used
// when no queue is configured; a failed send is only retried if the order
// shows up as new again.
type InlineDispatcher struct {
	notifier *notify.Notifier
}

// NewInlineDispatcher returns an InlineDispatcher over notifier.
func NewInlineDispatcher(notifier *notify.Notifier) *InlineDispatcher {
	return &InlineDispatcher{notifier: notifier}
}

// Dispatch sends the notification now. Skipped is not an error.
func (d *InlineDispatcher) Dispatch(ctx context.Context, orderID string) error {
	_, err := d.notifier.NotifyIfNew(ctx, orderID)
	return err
}
