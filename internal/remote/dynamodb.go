package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBConfig locates the table acting as the remote authority.
type DynamoDBConfig struct {
	Region          string
	TableName       string
	Endpoint        string // Optional, for LocalStack
	AccessKeyID     string // Optional, can use IAM role instead
	SecretAccessKey string // Optional, can use IAM role instead
}

// DynamoDBBackend stores remote objects in a DynamoDB table keyed by "pk" = "<type>#<id>".
type DynamoDBBackend struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoItem is the stored shape of an Object.
type dynamoItem struct {
	PK           string                 `dynamodbav:"pk"`
	ObjectType   string                 `dynamodbav:"object_type"`
	ID           string                 `dynamodbav:"id"`
	Fields       map[string]interface{} `dynamodbav:"fields"`
	Modstamp     int64                  `dynamodbav:"modstamp"`
	LastModified int64                  `dynamodbav:"last_modified"`
}

func itemKey(objectType, id string) string {
	return objectType + "#" + id
}

func toItem(o *Object) *dynamoItem {
	return &dynamoItem{
		PK:           itemKey(o.Type, o.ID),
		ObjectType:   o.Type,
		ID:           o.ID,
		Fields:       o.Fields,
		Modstamp:     o.Modstamp,
		LastModified: o.LastModified,
	}
}

func (i *dynamoItem) object() *Object {
	fields := i.Fields
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Object{
		Type:         i.ObjectType,
		ID:           i.ID,
		Fields:       fields,
		Modstamp:     i.Modstamp,
		LastModified: i.LastModified,
	}
}

// NewDynamoDBBackend connects to an existing table.
func NewDynamoDBBackend(cfg DynamoDBConfig) (*DynamoDBBackend, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	log.Printf("[DYNAMODB] Connected to table %s in %s", cfg.TableName, cfg.Region)
	return &DynamoDBBackend{client: client, tableName: cfg.TableName}, nil
}

// NewDynamoDB creates a Service over a DynamoDB table.
func NewDynamoDB(cfg DynamoDBConfig, opts ...Option) (*Service, error) {
	backend, err := NewDynamoDBBackend(cfg)
	if err != nil {
		return nil, err
	}
	return newService("DYNAMODB", backend, opts...), nil
}

func (d *DynamoDBBackend) Scan(ctx context.Context, objectType string) ([]*Object, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}
	if objectType != "" {
		input.FilterExpression = aws.String("object_type = :t")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: objectType},
		}
	}

	var out []*Object
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Printf("[DYNAMODB] ERROR: Scan of %s failed: %v", d.tableName, err)
			return nil, fmt.Errorf("failed to scan %s: %w", d.tableName, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode scan page: %w", err)
		}
		for i := range items {
			out = append(out, items[i].object())
		}
	}
	return out, nil
}

func (d *DynamoDBBackend) Get(ctx context.Context, objectType, id string) (*Object, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: itemKey(objectType, id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", objectType, id, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", objectType, id, err)
	}
	return item.object(), nil
}

func (d *DynamoDBBackend) Put(ctx context.Context, obj *Object, mustNotExist bool) error {
	av, err := attributevalue.MarshalMap(toItem(obj))
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", obj.Type, obj.ID, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	}
	if mustNotExist {
		input.ConditionExpression = aws.String("attribute_not_exists(pk)")
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%s %s already exists", obj.Type, obj.ID)
		}
		log.Printf("[DYNAMODB] ERROR: Failed to put %s %s: %v", obj.Type, obj.ID, err)
		return fmt.Errorf("failed to put %s %s: %w", obj.Type, obj.ID, err)
	}
	return nil
}

func (d *DynamoDBBackend) Remove(ctx context.Context, objectType, id string) (bool, error) {
	result, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: itemKey(objectType, id)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", objectType, id, err)
	}
	return len(result.Attributes) > 0, nil
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (d *DynamoDBBackend) Close() error {
	return nil
}
