// Package dynamo stores ledger records in a DynamoDB table keyed by
// Username, using the attribute layout of the existing Users table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/msomdec/trackitnow/internal/domain"
)

const (
	attrUsername = "Username"
	attrEmail    = "Email"
	attrPassword = "PasswordHash"
	attrPickup   = "Pickup location"
	attrDrop     = "Drop location"
	attrStatus   = "Delivery status"
	attrVersion  = "Version"

	tableWaitTimeout = 2 * time.Minute
)

// API is the subset of *dynamodb.Client used by the store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// item mirrors one row of the table.
type item struct {
	Username        string   `dynamodbav:"Username"`
	Email           string   `dynamodbav:"Email"`
	PasswordHash    string   `dynamodbav:"PasswordHash"`
	PickupLocations []string `dynamodbav:"Pickup location"`
	DropLocations   []string `dynamodbav:"Drop location"`
	DeliveryStatus  string   `dynamodbav:"Delivery status"`
	Version         int64    `dynamodbav:"Version"`
}

// Store implements domain.LedgerRepository and domain.Database on DynamoDB.
type Store struct {
	api   API
	table string
}

// New creates a Store over an existing client.
func New(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// NewFromConfig builds the DynamoDB client from an AWS config.
func NewFromConfig(cfg aws.Config, table string) *Store {
	return New(dynamodb.NewFromConfig(cfg), table)
}

// Migrate creates the table when it does not exist and waits until it is active.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return apiError("describe table "+s.table, err)
	}

	_, err = s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrUsername), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrUsername), AttributeType: types.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return apiError("create table "+s.table, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("wait for table %s: %w", s.table, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

func (s *Store) Create(ctx context.Context, user *domain.UserRecord) error {
	status := user.DeliveryStatus
	if status == "" {
		status = domain.DefaultDeliveryStatus
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrUsername: &types.AttributeValueMemberS{Value: user.Username},
			attrEmail:    &types.AttributeValueMemberS{Value: user.Email},
			attrPassword: &types.AttributeValueMemberS{Value: user.PasswordHash},
			attrPickup:   stringList(nil),
			attrDrop:     stringList(nil),
			attrStatus:   &types.AttributeValueMemberS{Value: status},
			attrVersion:  number(0),
		},
		ConditionExpression:      aws.String("attribute_not_exists(#u)"),
		ExpressionAttributeNames: map[string]string{"#u": attrUsername},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrDuplicateUsername
		}
		return apiError("put item", err)
	}

	user.DeliveryStatus = status
	user.Version = 0
	return nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(username),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, apiError("get item", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrUserNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &domain.UserRecord{
		Username:        it.Username,
		Email:           it.Email,
		PasswordHash:    it.PasswordHash,
		PickupLocations: it.PickupLocations,
		DropLocations:   it.DropLocations,
		DeliveryStatus:  it.DeliveryStatus,
		Version:         it.Version,
	}, nil
}

// AppendOrder issues a single UpdateItem that list_appends to both
// attributes, so concurrent appends are serialized by DynamoDB.
func (s *Store) AppendOrder(ctx context.Context, username string, order domain.Order) (int, error) {
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       key(username),
		UpdateExpression: aws.String(
			"SET #p = list_append(if_not_exists(#p, :empty), :p), " +
				"#d = list_append(if_not_exists(#d, :empty), :d), " +
				"#v = if_not_exists(#v, :zero) + :one"),
		ConditionExpression: aws.String(
			"attribute_exists(#u) AND " +
				"((attribute_not_exists(#p) AND attribute_not_exists(#d)) OR size(#p) = size(#d))"),
		ExpressionAttributeNames: map[string]string{
			"#u": attrUsername,
			"#p": attrPickup,
			"#d": attrDrop,
			"#v": attrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": stringList(nil),
			":p":     stringList([]string{order.Pickup}),
			":d":     stringList([]string{order.Drop}),
			":zero":  number(0),
			":one":   number(1),
		},
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return 0, domain.ErrUserNotFound
			}
			return 0, domain.ErrLengthMismatch
		}
		return 0, apiError("update item", err)
	}

	var updated item
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("unmarshal updated attributes: %w", err)
	}
	return len(updated.PickupLocations), nil
}

func (s *Store) ReplaceOrders(ctx context.Context, username string, pickups, drops []string, version int64) error {
	names := map[string]string{
		"#p": attrPickup,
		"#d": attrDrop,
		"#v": attrVersion,
	}
	condition := "#v = :ver"
	if version == 0 {
		// Records written before versioning carry no Version attribute.
		names["#u"] = attrUsername
		condition = "attribute_exists(#u) AND (attribute_not_exists(#v) OR #v = :ver)"
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      key(username),
		UpdateExpression:         aws.String("SET #p = :p, #d = :d, #v = if_not_exists(#v, :zero) + :one"),
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":    stringList(pickups),
			":d":    stringList(drops),
			":zero": number(0),
			":one":  number(1),
			":ver":  number(version),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return domain.ErrUserNotFound
			}
			return domain.ErrVersionConflict
		}
		return apiError("update item", err)
	}
	return nil
}

func key(username string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUsername: &types.AttributeValueMemberS{Value: username},
	}
}

func stringList(values []string) *types.AttributeValueMemberL {
	list := make([]types.AttributeValue, len(values))
	for i, v := range values {
		list[i] = &types.AttributeValueMemberS{Value: v}
	}
	return &types.AttributeValueMemberL{Value: list}
}

func number(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// apiError wraps err with the service error code when the failure came back
// from DynamoDB rather than the transport.
func apiError(op string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return fmt.Errorf("%s: %s: %w", op, ae.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
