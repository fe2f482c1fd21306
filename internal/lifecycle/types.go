package lifecycle

import (
	"time"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
)

// Record is the per-order item persisted in the lifecycle DynamoDB table.
// It only tracks what operators and the notifier observe locally; order
// existence itself is owned by the warehouse.
type Record struct {
	OrderID        string        `dynamodbav:"order_id"` // PK
	RequestedAt    *time.Time    `dynamodbav:"requested_at,omitempty"`
	Deadline       *time.Time    `dynamodbav:"deadline,omitempty"` // always requested_at + delivery window
	DeliveredAt    *time.Time    `dynamodbav:"delivered_at,omitempty"`
	Compliance     rules.Verdict `dynamodbav:"compliance"`
	LastNotifiedAt *time.Time    `dynamodbav:"last_notified_at,omitempty"`
	UpdatedAt      time.Time     `dynamodbav:"updated_at"`
}
