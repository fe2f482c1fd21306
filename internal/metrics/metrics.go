// Package metrics publishes per-cycle sync statistics to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/aws"
)

// Namespace groups all sync metrics in CloudWatch.
const Namespace = "FulfillmentTracker/Sync"

// CycleStats summarizes one reconciliation cycle.
type CycleStats struct {
	OrdersFetched       int
	NewDetected         int
	NotificationsSent   int
	NotificationsFailed int
	Duration            time.Duration
}

// Publisher sends CycleStats to CloudWatch.
type Publisher struct {
	client aws.CloudWatchAPI
}

// NewPublisher returns a Publisher using the given client.
func NewPublisher(client aws.CloudWatchAPI) *Publisher {
	return &Publisher{client: client}
}

// PublishCycle emits one datapoint per stat. Failures are returned for
// logging but never abort a sync cycle.
func (p *Publisher) PublishCycle(ctx context.Context, stats CycleStats) error {
	now := time.Now()
	data := []cwtypes.MetricDatum{
		datum("OrdersFetched", float64(stats.OrdersFetched), cwtypes.StandardUnitCount, now),
		datum("NewOrdersDetected", float64(stats.NewDetected), cwtypes.StandardUnitCount, now),
		datum("NotificationsSent", float64(stats.NotificationsSent), cwtypes.StandardUnitCount, now),
		datum("NotificationsFailed", float64(stats.NotificationsFailed), cwtypes.StandardUnitCount, now),
		datum("CycleDurationMs", float64(stats.Duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, now),
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(Namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func datum(name string, value float64, unit cwtypes.StandardUnit, at time.Time) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       unit,
		Timestamp:  &at,
	}
}

func awsString(s string) *string { return &s }
