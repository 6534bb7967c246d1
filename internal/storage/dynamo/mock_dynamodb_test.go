package dynamo

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory stand-in supporting the condition
// and update expressions the store issues. It stores items per table
// in a nested map: table -> pkValue -> item map.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	failNext error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

func pkOf(attrs map[string]types.AttributeValue) (string, error) {
	if v, ok := attrs["order_id"]; ok {
		return v.(*types.AttributeValueMemberS).Value, nil
	}
	if v, ok := attrs["product_id"]; ok {
		return v.(*types.AttributeValueMemberS).Value, nil
	}
	return "", errors.New("no primary key attribute")
}

func (m *mockDynamo) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_not_exists") {
		if _, exists := m.tables[table][pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][pk]

	// evaluate condition before applying any writes
	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(order_id)") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		current := ""
		if cs, ok := item["cancel_status"].(*types.AttributeValueMemberS); ok {
			current = cs.Value
		}
		if strings.Contains(cond, "cancel_status <> :confirmed") {
			expected := params.ExpressionAttributeValues[":confirmed"].(*types.AttributeValueMemberS).Value
			if current == expected {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
		if strings.Contains(cond, "cancel_status = :requested") {
			expected := params.ExpressionAttributeValues[":requested"].(*types.AttributeValueMemberS).Value
			if current != expected {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	// apply "SET attr = :ph, ..." assignments
	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assign := range strings.Split(expr, ",") {
		parts := strings.Split(strings.TrimSpace(assign), " = ")
		if len(parts) != 2 {
			return nil, errors.New("unsupported update expression: " + assign)
		}
		attr := parts[0]
		if name, ok := params.ExpressionAttributeNames[attr]; ok {
			attr = name
		}
		item[attr] = params.ExpressionAttributeValues[parts[1]]
	}
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.DeleteItemOutput{}, nil
	}
	delete(m.tables[table], pk)
	return &dyn.DeleteItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	table := *params.TableName
	m.ensureTable(table)

	var filterEmail string
	if params.FilterExpression != nil && strings.Contains(*params.FilterExpression, "buyer_email = :e") {
		filterEmail = params.ExpressionAttributeValues[":e"].(*types.AttributeValueMemberS).Value
	}

	out := &dyn.ScanOutput{}
	for _, item := range m.tables[table] {
		if filterEmail != "" {
			email, ok := item["buyer_email"].(*types.AttributeValueMemberS)
			if !ok || email.Value != filterEmail {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
