// The worker consumes pending-notification messages and performs the actual
// WhatsApp sends. It runs as an SQS-triggered Lambda, or polls the queue
// directly when RUN_LOCAL=true.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	sdksqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	internalaws "github.com/jmedranoh/go-fulfillment-tracker/internal/aws"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/lifecycle"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/notify"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := internalaws.NewAWSClients(ctx)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	records := lifecycle.NewStore(
		clients.DynamoDB,
		getEnv("LIFECYCLE_TABLE", "order-lifecycle"),
		getEnv("ALLOW_REREQUEST", "true") == "true",
	)
	notifier := notify.New(notify.Config{
		Token:     os.Getenv("WHATSAPP_TOKEN"),
		PhoneID:   os.Getenv("WHATSAPP_PHONE_ID"),
		Recipient: os.Getenv("WHATSAPP_RECIPIENT"),
	}, records, notify.NewAttemptLog(getEnv("ATTEMPT_LOG", "notification_attempts.csv")), logger)

	p := NewProcessor(notifier, logger)

	if os.Getenv("RUN_LOCAL") == "true" {
		runLocal(ctx, p, clients.SQS, logger)
		return
	}

	lambda.Start(p.Handle)
}

// runLocal either drains the real queue or, with no queue configured,
// simulates a single event from LOCAL_SQS_BODY.
func runLocal(ctx context.Context, p *Processor, sqsClient internalaws.SQSAPI, logger *zap.Logger) {
	queueURL := os.Getenv("PENDING_QUEUE_URL")
	if queueURL == "" {
		body := getEnv("LOCAL_SQS_BODY", `{"order_id":"PED-LOCAL-F1","detected_at":"2024-01-01T00:00:00Z"}`)
		ev := events.SQSEvent{Records: []events.SQSMessage{{Body: body}}}
		if err := p.Handle(ctx, ev); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	logger.Info("polling pending-notification queue", zap.String("queue_url", queueURL))
	if err := pollQueue(ctx, p, sqsClient, queueURL, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("queue polling stopped", zap.Error(err))
	}
	logger.Info("worker shutdown complete")
}

// pollQueue loops over ReceiveMessage until ctx is cancelled. Messages whose
// handling fails stay on the queue for redelivery after the visibility timeout.
func pollQueue(ctx context.Context, p *Processor, sqsClient internalaws.SQSAPI, queueURL string, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := sqsClient.ReceiveMessage(ctx, &sdksqs.ReceiveMessageInput{
			QueueUrl:            &queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, m := range out.Messages {
			ev := events.SQSEvent{Records: []events.SQSMessage{{
				MessageId: deref(m.MessageId),
				Body:      deref(m.Body),
			}}}
			if err := p.Handle(ctx, ev); err != nil {
				continue
			}
			if _, err := sqsClient.DeleteMessage(ctx, &sdksqs.DeleteMessageInput{
				QueueUrl:      &queueURL,
				ReceiptHandle: m.ReceiptHandle,
			}); err != nil {
				logger.Warn("delete failed", zap.Error(err))
			}
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
