package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory stand-in for GetItem/UpdateItem used in
// unit tests. It understands the exact condition expressions this store
// issues and applies flat "SET name = :val" update expressions.
// NOTE: intentionally minimal and not production-grade.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	getCalls    int
	updateCalls int

	// failNext, when set, makes the next call return this error.
	failNext error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	k, err := keyValue(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	k, err := keyValue(params.Key)
	if err != nil {
		return nil, err
	}

	item, exists := m.table[k]
	if params.ConditionExpression != nil {
		switch expr := *params.ConditionExpression; expr {
		case "attribute_not_exists(requested_at)":
			if exists {
				if _, has := item["requested_at"]; has {
					return nil, &types.ConditionalCheckFailedException{}
				}
			}
		case "attribute_exists(deadline)":
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
			if _, has := item["deadline"]; !has {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, errors.New("unsupported condition expression: " + expr)
		}
	}

	if !exists {
		item = map[string]types.AttributeValue{}
		for kk, vv := range params.Key {
			item[kk] = vv
		}
		m.table[k] = item
	}

	expr := ""
	if params.UpdateExpression != nil {
		expr = *params.UpdateExpression
	}
	if !strings.HasPrefix(expr, "SET ") {
		return nil, errors.New("unsupported update expression: " + expr)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ", ") {
		parts := strings.SplitN(assign, " = ", 2)
		if len(parts) != 2 {
			return nil, errors.New("malformed assignment: " + assign)
		}
		val, ok := params.ExpressionAttributeValues[parts[1]]
		if !ok {
			return nil, errors.New("missing expression value: " + parts[1])
		}
		item[parts[0]] = val
	}

	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (m *simpleMock) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func keyValue(key map[string]types.AttributeValue) (string, error) {
	attr, ok := key["order_id"]
	if !ok {
		return "", errors.New("missing order_id key")
	}
	s, ok := attr.(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("order_id key is not a string")
	}
	return s.Value, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
