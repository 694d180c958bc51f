package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pod-assistant/internal/domain"
)

const (
	pkPrefixDocket = "DOCKET#"
	skProfile      = "PROFILE"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client wraps a DynamoDB table holding docket records.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// docketPK returns the DynamoDB partition key for a docket.
func docketPK(id string) string {
	return pkPrefixDocket + id
}

func docketKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: docketPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skProfile},
	}
}

// GetDocket reads a docket with a strongly consistent read.
func (c *Client) GetDocket(ctx context.Context, id string) (domain.Docket, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            docketKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Docket{}, fmt.Errorf("repository: GetDocket get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Docket{}, fmt.Errorf("repository: GetDocket %s: %w", id, domain.ErrDocketNotFound)
	}
	d, err := itemToDocket(out.Item)
	if err != nil {
		return domain.Docket{}, fmt.Errorf("repository: GetDocket unmarshal: %w", err)
	}
	return d, nil
}

// UpdateDocketStatus sets status and verification in a single conditional
// write so the record is never created as a side effect.
func (c *Client) UpdateDocketStatus(ctx context.Context, id string, status domain.DocketStatus, verified bool) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 docketKey(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET #status = :status, podVerified = :verified, updatedAt = :updatedAt"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(status)},
			":verified":  &types.AttributeValueMemberBOOL{Value: verified},
			":updatedAt": &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("repository: UpdateDocketStatus %s: %w", id, domain.ErrDocketNotFound)
		}
		return fmt.Errorf("repository: UpdateDocketStatus: %w", err)
	}
	return nil
}

// SeedDockets inserts dockets that do not exist yet and returns how many were written.
func (c *Client) SeedDockets(ctx context.Context, dockets []domain.Docket) (int, error) {
	inserted := 0
	for _, d := range dockets {
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = c.now().UTC()
		}
		_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(c.tableName),
			Item:                docketItem(d),
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				continue
			}
			return inserted, fmt.Errorf("repository: SeedDockets put %s: %w", d.ID, err)
		}
		inserted++
	}
	return inserted, nil
}

// ListDockets scans every docket record ordered by id.
func (c *Client) ListDockets(ctx context.Context) ([]domain.Docket, error) {
	var (
		dockets []domain.Docket
		start   map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(c.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: pkPrefixDocket},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListDockets scan: %w", err)
		}
		for _, item := range out.Items {
			d, err := itemToDocket(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListDockets unmarshal: %w", err)
			}
			dockets = append(dockets, d)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.Slice(dockets, func(i, j int) bool { return dockets[i].ID < dockets[j].ID })
	return dockets, nil
}

func docketItem(d domain.Docket) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: docketPK(d.ID)},
		"SK":           &types.AttributeValueMemberS{Value: skProfile},
		"docketId":     &types.AttributeValueMemberS{Value: d.ID},
		"customerName": &types.AttributeValueMemberS{Value: d.CustomerName},
		"address":      &types.AttributeValueMemberS{Value: d.Address},
		"status":       &types.AttributeValueMemberS{Value: string(d.Status)},
		"podVerified":  &types.AttributeValueMemberBOOL{Value: d.PODVerified},
		"updatedAt":    &types.AttributeValueMemberS{Value: d.UpdatedAt.UTC().Format(time.RFC3339)},
	}
}

// itemToDocket converts a DynamoDB attribute map to a Docket.
func itemToDocket(item map[string]types.AttributeValue) (domain.Docket, error) {
	id, err := strAttr(item, "docketId")
	if err != nil {
		return domain.Docket{}, err
	}
	customer, err := strAttr(item, "customerName")
	if err != nil {
		return domain.Docket{}, err
	}
	address, err := strAttr(item, "address")
	if err != nil {
		return domain.Docket{}, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.Docket{}, err
	}
	verified, _ := boolAttr(item, "podVerified") // absent means unverified

	d := domain.Docket{
		ID:           id,
		CustomerName: customer,
		Address:      address,
		Status:       domain.DocketStatus(status),
		PODVerified:  verified,
	}
	if raw, err := strAttr(item, "updatedAt"); err == nil {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.Docket{}, fmt.Errorf("repository: parse attribute %q: %w", "updatedAt", err)
		}
		d.UpdatedAt = ts
	}
	return d, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}
