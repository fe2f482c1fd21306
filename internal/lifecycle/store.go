// Package lifecycle persists locally-observed order lifecycle state: when an
// operator requested the invoice, when it was delivered, the derived
// compliance verdict, and the daily notification dedup marker.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/aws"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
)

// ErrOrderNotFound indicates a delivery was marked before any request, so
// there is no stored deadline to evaluate compliance against.
var ErrOrderNotFound = errors.New("order has no requested deadline")

// ErrAlreadyRequested indicates a second mark-requested was rejected because
// re-requesting is disabled.
var ErrAlreadyRequested = errors.New("order already requested")

// Store encapsulates lifecycle operations against DynamoDB.
//
// Every mutation is a single-item UpdateItem, so requested_at and its derived
// deadline are always written together and readers never see one without the
// other. DynamoDB serializes writes per key, which covers the concurrent
// operator-action requirement without any process-local locking.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string

	// AllowRerequest controls whether a second mark-requested may overwrite
	// the first and reset the deadline clock. The observed systems disagree
	// on this, so it is policy, not a constant.
	allowRerequest bool

	nowFunc func() time.Time
}

// NewStore returns a configured Store bound to the lifecycle table.
func NewStore(client aws.DynamoDBAPI, tableName string, allowRerequest bool) *Store {
	return &Store{
		client:         client,
		tableName:      tableName,
		allowRerequest: allowRerequest,
		nowFunc:        time.Now,
	}
}

// Get fetches a record by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       recordKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// MarkRequested upserts the record with requested_at = at, the derived
// deadline, and a reset Pending verdict, all in one write. When re-requesting
// is disabled and a requested_at already exists it fails with
// ErrAlreadyRequested and leaves the record untouched.
func (s *Store) MarkRequested(ctx context.Context, orderID string, at time.Time) (*Record, error) {
	deadline := rules.Deadline(at)
	input := &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              recordKey(orderID),
		UpdateExpression: awsString("SET requested_at = :ra, deadline = :dl, compliance = :cv, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ra": timeAttr(at),
			":dl": timeAttr(deadline),
			":cv": &types.AttributeValueMemberS{Value: string(rules.VerdictPending)},
			":ua": timeAttr(s.nowFunc()),
		},
		ReturnValues: types.ReturnValueAllNew,
	}
	if !s.allowRerequest {
		input.ConditionExpression = awsString("attribute_not_exists(requested_at)")
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrAlreadyRequested
		}
		return nil, fmt.Errorf("update item (mark requested): %w", err)
	}
	return unmarshalNew(out.Attributes)
}

// MarkDelivered sets delivered_at = at and the verdict computed against the
// stored deadline. It fails with ErrOrderNotFound when the order was never
// marked requested; the condition expression guards the race where the
// record appears between the read and the write but still has no deadline.
func (s *Store) MarkDelivered(ctx context.Context, orderID string, at time.Time) (*Record, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Deadline == nil {
		return nil, ErrOrderNotFound
	}

	verdict := rules.Compliance(rec.Deadline, &at)
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(orderID),
		UpdateExpression:    awsString("SET delivered_at = :da, compliance = :cv, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(deadline)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":da": timeAttr(at),
			":cv": &types.AttributeValueMemberS{Value: string(verdict)},
			":ua": timeAttr(s.nowFunc()),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update item (mark delivered): %w", err)
	}
	return unmarshalNew(out.Attributes)
}

// WasNotifiedToday reports whether a notification for this order was already
// recorded on the same calendar day as today.
func (s *Store) WasNotifiedToday(ctx context.Context, orderID string, today time.Time) (bool, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.LastNotifiedAt == nil {
		return false, nil
	}
	return rules.SameDay(*rec.LastNotifiedAt, today), nil
}

// RecordNotification upserts the dedup marker. Calling it twice on the same
// day is a no-op beyond refreshing the timestamp.
func (s *Store) RecordNotification(ctx context.Context, orderID string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              recordKey(orderID),
		UpdateExpression: awsString("SET last_notified_at = :na, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":na": timeAttr(at),
			":ua": timeAttr(s.nowFunc()),
		},
	})
	if err != nil {
		return fmt.Errorf("update item (record notification): %w", err)
	}
	return nil
}

func recordKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func timeAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}
}

func unmarshalNew(attrs map[string]types.AttributeValue) (*Record, error) {
	var rec Record
	if err := attributevalue.UnmarshalMap(attrs, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal updated record: %w", err)
	}
	return &rec, nil
}

func isConditionalCheckFailed(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException"
}

// Helper
func awsString(s string) *string { return &s }
