package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rizalap/digishop/internal/aws"
	"github.com/rizalap/digishop/internal/orders"
)

// Catalog implements orders.Catalog on a DynamoDB products table.
type Catalog struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewCatalog returns a Catalog bound to tableName.
func NewCatalog(client aws.DynamoDBAPI, tableName string) *Catalog {
	return &Catalog{client: client, tableName: tableName}
}

type productRecord struct {
	ProductID string `dynamodbav:"product_id"`
	Name      string `dynamodbav:"name"`
	Duration  string `dynamodbav:"duration"`
	UnitPrice int64  `dynamodbav:"unit_price"`
	IsActive  bool   `dynamodbav:"is_active"`
}

// GetProduct fetches a product by id. Returns orders.ErrNotFound when
// absent.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	out, err := c.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, orders.ErrNotFound
	}
	var r productRecord
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &orders.Product{
		ID:        r.ProductID,
		Name:      r.Name,
		Duration:  r.Duration,
		UnitPrice: r.UnitPrice,
		IsActive:  r.IsActive,
	}, nil
}
