package dynamodb

import (
	"context"
	"fmt"
	"time"

	"fleetgrid-backend/domain/entities"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// LogRepository implements ports.LogRepository on DynamoDB. Logs partition
// by device with a timestamp-ordered sort key; the GSI partitions by
// organization for export queries.
type LogRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *LogRepository {
	return &LogRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// logItem represents the DynamoDB item structure for a device log
type logItem struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	GSI1PK         string  `dynamodbav:"GSI1PK"`
	GSI1SK         string  `dynamodbav:"GSI1SK"`
	EntityType     string  `dynamodbav:"EntityType"`
	LogID          string  `dynamodbav:"LogID"`
	DeviceID       string  `dynamodbav:"DeviceID"`
	OrganizationID string  `dynamodbav:"OrganizationID"`
	Event          string  `dynamodbav:"Event"`
	Value          float64 `dynamodbav:"Value"`
	Timestamp      string  `dynamodbav:"Timestamp"`
}

func logToItem(log *entities.DeviceLog) logItem {
	ts := log.Timestamp.Format(time.RFC3339Nano)
	return logItem{
		PK:             fmt.Sprintf("DEVICE#%s", log.DeviceID),
		SK:             fmt.Sprintf("LOG#%s#%s", ts, log.ID),
		GSI1PK:         fmt.Sprintf("ORG#%s", log.OrganizationID),
		GSI1SK:         ts,
		EntityType:     "LOG",
		LogID:          log.ID,
		DeviceID:       log.DeviceID,
		OrganizationID: log.OrganizationID,
		Event:          log.Event,
		Value:          log.Value,
		Timestamp:      ts,
	}
}

func itemToLog(item logItem) entities.DeviceLog {
	ts, _ := time.Parse(time.RFC3339Nano, item.Timestamp)
	return entities.DeviceLog{
		ID:             item.LogID,
		DeviceID:       item.DeviceID,
		OrganizationID: item.OrganizationID,
		Event:          item.Event,
		Value:          item.Value,
		Timestamp:      ts,
	}
}

// Create persists a new log entry
func (r *LogRepository) Create(ctx context.Context, log *entities.DeviceLog) error {
	av, err := attributevalue.MarshalMap(logToItem(log))
	if err != nil {
		return appErrors.NewStorageError("marshal log", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("Failed to put log", zap.String("deviceID", log.DeviceID), zap.Error(err))
		return appErrors.NewStorageError("create log", err)
	}

	return nil
}

// FindRecent returns up to limit log entries for a device, newest first
func (r *LogRepository) FindRecent(ctx context.Context, deviceID string, limit int) ([]entities.DeviceLog, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("DEVICE#%s", deviceID))).
		And(expression.Key("SK").BeginsWith("LOG#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, appErrors.NewStorageError("build log query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		r.logger.Error("Failed to query recent logs", zap.String("deviceID", deviceID), zap.Error(err))
		return nil, appErrors.NewStorageError("list logs", err)
	}

	return unmarshalLogs(result.Items)
}

// FindSince returns a device's log entries at or after the given time
func (r *LogRepository) FindSince(ctx context.Context, deviceID string, since time.Time) ([]entities.DeviceLog, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("DEVICE#%s", deviceID))).
		And(expression.Key("SK").GreaterThanEqual(expression.Value(fmt.Sprintf("LOG#%s", since.Format(time.RFC3339Nano)))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, appErrors.NewStorageError("build log query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	logs := make([]entities.DeviceLog, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query logs since", zap.String("deviceID", deviceID), zap.Error(err))
			return nil, appErrors.NewStorageError("list logs", err)
		}
		pageLogs, err := unmarshalLogs(page.Items)
		if err != nil {
			return nil, err
		}
		logs = append(logs, pageLogs...)
	}

	return logs, nil
}

// FindByOrganization returns an organization's log entries in [start, end]
// via the GSI.
func (r *LogRepository) FindByOrganization(ctx context.Context, orgID string, start, end time.Time) ([]entities.DeviceLog, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("ORG#%s", orgID))).
		And(expression.Key("GSI1SK").Between(
			expression.Value(start.Format(time.RFC3339Nano)),
			expression.Value(end.Format(time.RFC3339Nano)),
		))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, appErrors.NewStorageError("build org log query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	logs := make([]entities.DeviceLog, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query org logs", zap.String("orgID", orgID), zap.Error(err))
			return nil, appErrors.NewStorageError("list org logs", err)
		}
		pageLogs, err := unmarshalLogs(page.Items)
		if err != nil {
			return nil, err
		}
		logs = append(logs, pageLogs...)
	}

	return logs, nil
}

func unmarshalLogs(items []map[string]types.AttributeValue) ([]entities.DeviceLog, error) {
	logs := make([]entities.DeviceLog, 0, len(items))
	for _, raw := range items {
		var item logItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, appErrors.NewStorageError("unmarshal log", err)
		}
		logs = append(logs, itemToLog(item))
	}
	return logs, nil
}
