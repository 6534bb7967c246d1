package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/aws"
	"github.com/rizalap/digishop/internal/orders"
)

// Store implements orders.Store on a DynamoDB table. An order is a
// single item with its lines embedded, so the one-PutItem write keeps
// the header and lines atomic: the order is either fully visible or
// not at all.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	log       *logrus.Logger
	nowFunc   func() time.Time
	idFunc    func() string
}

// NewStore creates a new orders Store bound to tableName.
func NewStore(client aws.DynamoDBAPI, tableName string, log *logrus.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		log:       log,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
}

// record is the persisted shape of an order. BuyerEmail duplicates the
// nested buyer email at the top level so List can filter on it without
// document-path expressions.
type record struct {
	OrderID           string        `dynamodbav:"order_id"`
	Buyer             orders.Buyer  `dynamodbav:"buyer"`
	BuyerEmail        string        `dynamodbav:"buyer_email"`
	Lines             []orders.Line `dynamodbav:"lines"`
	Total             int64         `dynamodbav:"total"`
	Status            string        `dynamodbav:"status"`
	CancelStatus      string        `dynamodbav:"cancel_status"`
	CancelReason      string        `dynamodbav:"cancel_reason,omitempty"`
	CancelRequestedAt *time.Time    `dynamodbav:"cancel_requested_at,omitempty"`
	CancelConfirmedAt *time.Time    `dynamodbav:"cancel_confirmed_at,omitempty"`
	CreatedAt         time.Time     `dynamodbav:"created_at"`
}

func toRecord(o *orders.Order) record {
	return record{
		OrderID:           o.ID,
		Buyer:             o.Buyer,
		BuyerEmail:        o.Buyer.Email,
		Lines:             o.Lines,
		Total:             o.Total,
		Status:            o.Status,
		CancelStatus:      o.Cancel.Status,
		CancelReason:      o.Cancel.Reason,
		CancelRequestedAt: o.Cancel.RequestedAt,
		CancelConfirmedAt: o.Cancel.ConfirmedAt,
		CreatedAt:         o.CreatedAt,
	}
}

func (r record) toOrder() *orders.Order {
	return &orders.Order{
		ID:     r.OrderID,
		Buyer:  r.Buyer,
		Lines:  r.Lines,
		Total:  r.Total,
		Status: r.Status,
		Cancel: orders.CancelRequest{
			Status:      r.CancelStatus,
			Reason:      r.CancelReason,
			RequestedAt: r.CancelRequestedAt,
			ConfirmedAt: r.CancelConfirmedAt,
		},
		CreatedAt: r.CreatedAt,
	}
}

// Create validates the lines, assigns id and timestamp and writes the
// order item. A condition on order_id guards against uuid collisions.
func (s *Store) Create(ctx context.Context, buyer orders.Buyer, lines []orders.Line) (*orders.Order, error) {
	o, err := orders.NewOrder(s.idFunc(), buyer, lines, s.nowFunc().UTC())
	if err != nil {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(toRecord(o))
	if err != nil {
		return nil, fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put order item: %w", err)
	}

	s.log.Infof("order %s created for %s, total %d", o.ID, o.Buyer.Email, o.Total)
	return o, nil
}

// Get fetches an order by id. Returns orders.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*orders.Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, orders.ErrNotFound
	}
	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return r.toOrder(), nil
}

// List scans the table, optionally filtered by buyer email, and
// returns orders newest first.
func (s *Store) List(ctx context.Context, limit int, ownerEmail string) ([]orders.Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if ownerEmail != "" {
		input.FilterExpression = awsString("buyer_email = :e")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: ownerEmail},
		}
	}

	var recs []record
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var page []record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		recs = append(recs, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	result := make([]orders.Order, 0, len(recs))
	for _, r := range recs {
		result = append(result, *r.toOrder())
	}
	return result, nil
}

// UpdateStatus sets the status in a single atomic UpdateItem. The
// attribute_exists condition distinguishes a missing order from a
// plain write.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (*orders.Order, error) {
	if !orders.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", orders.ErrValidation, status)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(id),
		UpdateExpression:         awsString("SET #s = :s"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalFailed(err) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// RequestCancellation moves the cancellation track to requested. A
// repeated request while still requested overwrites reason and
// timestamp; once confirmed the condition rejects the write.
func (s *Store) RequestCancellation(ctx context.Context, id, reason string) (*orders.Order, error) {
	if err := orders.ValidateReason(reason); err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC()

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              orderKey(id),
		UpdateExpression: awsString("SET cancel_status = :cs, cancel_reason = :r, cancel_requested_at = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cs":        &types.AttributeValueMemberS{Value: orders.CancelRequested},
			":r":         &types.AttributeValueMemberS{Value: reason},
			":t":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":confirmed": &types.AttributeValueMemberS{Value: orders.CancelConfirmed},
		},
		ConditionExpression: awsString("attribute_exists(order_id) AND cancel_status <> :confirmed"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalFailed(err) {
			return nil, s.resolveCancelConflict(ctx, id, orders.ErrCancelConfirmed)
		}
		return nil, fmt.Errorf("request cancellation: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// ConfirmCancellation moves requested -> confirmed. Any other current
// cancel state fails the condition and surfaces as a policy violation.
func (s *Store) ConfirmCancellation(ctx context.Context, id string) (*orders.Order, error) {
	now := s.nowFunc().UTC()

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              orderKey(id),
		UpdateExpression: awsString("SET cancel_status = :cs, cancel_confirmed_at = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cs":        &types.AttributeValueMemberS{Value: orders.CancelConfirmed},
			":t":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":requested": &types.AttributeValueMemberS{Value: orders.CancelRequested},
		},
		ConditionExpression: awsString("attribute_exists(order_id) AND cancel_status = :requested"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalFailed(err) {
			return nil, s.resolveCancelConflict(ctx, id, orders.ErrCancelNotRequested)
		}
		return nil, fmt.Errorf("confirm cancellation: %w", err)
	}
	return unmarshalAttributes(out.Attributes)
}

// Delete removes the order. ReturnValues ALL_OLD tells us whether
// anything actually existed.
func (s *Store) Delete(ctx context.Context, id string) error {
	out, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:    &s.tableName,
		Key:          orderKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if len(out.Attributes) == 0 {
		return orders.ErrNotFound
	}
	return nil
}

// resolveCancelConflict decides whether a failed cancel-transition
// condition means the order is missing or in the wrong cancel state.
func (s *Store) resolveCancelConflict(ctx context.Context, id string, policyErr error) error {
	if _, err := s.Get(ctx, id); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return orders.ErrNotFound
		}
		return err
	}
	return policyErr
}

func unmarshalAttributes(attrs map[string]types.AttributeValue) (*orders.Order, error) {
	var r record
	if err := attributevalue.UnmarshalMap(attrs, &r); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return r.toOrder(), nil
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionalFailed(err error) bool {
	var cf *types.ConditionalCheckFailedException
	if errors.As(err, &cf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
