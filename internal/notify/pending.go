package notify

import "time"

// PendingNotification is the message placed on the pending-notification
// queue when the sync loop detects a new order. The worker consumes it and
// performs the actual send.
type PendingNotification struct {
	OrderID       string    `json:"order_id"`
	DetectedAt    time.Time `json:"detected_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}
