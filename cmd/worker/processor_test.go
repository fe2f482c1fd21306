package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/notify"
)

type fakeSender struct {
	calls    []string
	outcomes map[string]notify.Outcome
}

func (f *fakeSender) NotifyIfNew(ctx context.Context, orderID string) (notify.Outcome, error) {
	f.calls = append(f.calls, orderID)
	outcome, ok := f.outcomes[orderID]
	if !ok {
		outcome = notify.OutcomeSent
	}
	if outcome == notify.OutcomeFailed {
		return outcome, errors.New("provider 502")
	}
	return outcome, nil
}

func sqsEvent(bodies ...string) events.SQSEvent {
	ev := events.SQSEvent{}
	for _, b := range bodies {
		ev.Records = append(ev.Records, events.SQSMessage{Body: b})
	}
	return ev
}

func TestHandle_SendsEachMessage(t *testing.T) {
	sender := &fakeSender{outcomes: map[string]notify.Outcome{}}
	p := NewProcessor(sender, zap.NewNop())

	ev := sqsEvent(
		`{"order_id":"PED-001-F1","detected_at":"2024-01-01T10:00:00Z"}`,
		`{"order_id":"PED-002-F2","detected_at":"2024-01-01T10:00:00Z"}`,
	)
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.calls) != 2 || sender.calls[0] != "PED-001-F1" || sender.calls[1] != "PED-002-F2" {
		t.Fatalf("calls = %v", sender.calls)
	}
}

func TestHandle_SkippedIsNotAnError(t *testing.T) {
	sender := &fakeSender{outcomes: map[string]notify.Outcome{"PED-003-F1": notify.OutcomeSkipped}}
	p := NewProcessor(sender, zap.NewNop())

	ev := sqsEvent(`{"order_id":"PED-003-F1","detected_at":"2024-01-01T10:00:00Z"}`)
	if err := p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("skipped message should not error: %v", err)
	}
}

func TestHandle_FailedSendTriggersRedelivery(t *testing.T) {
	sender := &fakeSender{outcomes: map[string]notify.Outcome{"PED-004-F1": notify.OutcomeFailed}}
	p := NewProcessor(sender, zap.NewNop())

	ev := sqsEvent(`{"order_id":"PED-004-F1","detected_at":"2024-01-01T10:00:00Z"}`)
	if err := p.Handle(context.Background(), ev); err == nil {
		t.Fatalf("expected error so the queue redelivers")
	}
}

func TestHandle_MalformedBody(t *testing.T) {
	sender := &fakeSender{}
	p := NewProcessor(sender, zap.NewNop())

	if err := p.Handle(context.Background(), sqsEvent(`not-json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
	if len(sender.calls) != 0 {
		t.Fatalf("notifier called for malformed body: %v", sender.calls)
	}
}
