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

// DeviceRepository implements ports.DeviceRepository on DynamoDB. Devices
// partition by owner so listings are a single Query.
type DeviceRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// deviceItem represents the DynamoDB item structure for a device
type deviceItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	DeviceID     string `dynamodbav:"DeviceID"`
	Name         string `dynamodbav:"Name"`
	Type         string `dynamodbav:"Type"`
	Status       string `dynamodbav:"Status"`
	OwnerID      string `dynamodbav:"OwnerID"`
	LastActiveAt string `dynamodbav:"LastActiveAt,omitempty"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

func deviceToItem(device *entities.Device) deviceItem {
	item := deviceItem{
		PK:         fmt.Sprintf("OWNER#%s", device.OwnerID),
		SK:         fmt.Sprintf("DEVICE#%s", device.ID),
		EntityType: "DEVICE",
		DeviceID:   device.ID,
		Name:       device.Name,
		Type:       device.Type,
		Status:     device.Status,
		OwnerID:    device.OwnerID,
		CreatedAt:  device.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  device.UpdatedAt.Format(time.RFC3339Nano),
	}
	if device.LastActiveAt != nil {
		item.LastActiveAt = device.LastActiveAt.Format(time.RFC3339Nano)
	}
	return item
}

func itemToDevice(item deviceItem) entities.Device {
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	device := entities.Device{
		ID:        item.DeviceID,
		Name:      item.Name,
		Type:      item.Type,
		Status:    item.Status,
		OwnerID:   item.OwnerID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if item.LastActiveAt != "" {
		if lastActive, err := time.Parse(time.RFC3339Nano, item.LastActiveAt); err == nil {
			device.LastActiveAt = &lastActive
		}
	}
	return device
}

// Create persists a new device
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	av, err := attributevalue.MarshalMap(deviceToItem(device))
	if err != nil {
		return appErrors.NewStorageError("marshal device", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("Failed to put device",
			zap.String("deviceID", device.ID),
			zap.String("ownerID", device.OwnerID),
			zap.Error(err),
		)
		return appErrors.NewStorageError("create device", err)
	}

	return nil
}

// FindByOwner returns the owner's devices matching the filter
func (r *DeviceRepository) FindByOwner(ctx context.Context, ownerID string, filter entities.DeviceFilter) ([]entities.Device, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("OWNER#%s", ownerID))).
		And(expression.Key("SK").BeginsWith("DEVICE#"))

	builder := expression.NewBuilder().WithKeyCondition(keyExpr)

	var filterExpr expression.ConditionBuilder
	hasFilter := false
	if filter.Type != "" {
		filterExpr = expression.Name("Type").Equal(expression.Value(filter.Type))
		hasFilter = true
	}
	if filter.Status != "" {
		statusExpr := expression.Name("Status").Equal(expression.Value(filter.Status))
		if hasFilter {
			filterExpr = filterExpr.And(statusExpr)
		} else {
			filterExpr = statusExpr
			hasFilter = true
		}
	}
	if hasFilter {
		builder = builder.WithFilter(filterExpr)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, appErrors.NewStorageError("build device query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	devices := make([]entities.Device, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query devices", zap.String("ownerID", ownerID), zap.Error(err))
			return nil, appErrors.NewStorageError("list devices", err)
		}
		for _, raw := range page.Items {
			var item deviceItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, appErrors.NewStorageError("unmarshal device", err)
			}
			devices = append(devices, itemToDevice(item))
		}
	}

	return devices, nil
}

// FindOne returns the owner's device with the given id, or nil if absent
func (r *DeviceRepository) FindOne(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       deviceKey(ownerID, deviceID),
	})
	if err != nil {
		r.logger.Error("Failed to get device", zap.String("deviceID", deviceID), zap.Error(err))
		return nil, appErrors.NewStorageError("find device", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item deviceItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, appErrors.NewStorageError("unmarshal device", err)
	}

	device := itemToDevice(item)
	return &device, nil
}

// Update replaces the stored device
func (r *DeviceRepository) Update(ctx context.Context, device *entities.Device) error {
	device.UpdatedAt = time.Now().UTC()
	return r.Create(ctx, device)
}

// Delete removes the owner's device and returns it, or nil if absent
func (r *DeviceRepository) Delete(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	result, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          deviceKey(ownerID, deviceID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		r.logger.Error("Failed to delete device", zap.String("deviceID", deviceID), zap.Error(err))
		return nil, appErrors.NewStorageError("delete device", err)
	}
	if result.Attributes == nil {
		return nil, nil
	}

	var item deviceItem
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, appErrors.NewStorageError("unmarshal device", err)
	}

	device := itemToDevice(item)
	return &device, nil
}

func deviceKey(ownerID, deviceID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("OWNER#%s", ownerID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("DEVICE#%s", deviceID)},
	}
}
