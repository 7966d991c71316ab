// Package dynamodb implements the durable document store on a single
// DynamoDB table. Items carry PK/SK composite keys plus one GSI for
// owner/organization scoped lookups.
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

// UserRepository implements ports.UserRepository on DynamoDB
type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// userItem represents the DynamoDB item structure for a user
type userItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK"`
	GSI1SK         string `dynamodbav:"GSI1SK"`
	EntityType     string `dynamodbav:"EntityType"`
	UserID         string `dynamodbav:"UserID"`
	Name           string `dynamodbav:"Name"`
	Email          string `dynamodbav:"Email"`
	PasswordHash   string `dynamodbav:"PasswordHash"`
	Role           string `dynamodbav:"Role"`
	OrganizationID string `dynamodbav:"OrganizationID"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

func userToItem(user *entities.User) userItem {
	return userItem{
		PK:             fmt.Sprintf("USER#%s", user.ID),
		SK:             "METADATA",
		GSI1PK:         fmt.Sprintf("EMAIL#%s", user.Email),
		GSI1SK:         "METADATA",
		EntityType:     "USER",
		UserID:         user.ID,
		Name:           user.Name,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      user.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func itemToUser(item userItem) *entities.User {
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return &entities.User{
		ID:             item.UserID,
		Name:           item.Name,
		Email:          item.Email,
		PasswordHash:   item.PasswordHash,
		Role:           item.Role,
		OrganizationID: item.OrganizationID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

// Create persists a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	av, err := attributevalue.MarshalMap(userToItem(user))
	if err != nil {
		return appErrors.NewStorageError("marshal user", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("Failed to put user", zap.String("userID", user.ID), zap.Error(err))
		return appErrors.NewStorageError("create user", err)
	}

	return nil
}

// FindByID returns the user with the given id, or nil if absent
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("userID", id), zap.Error(err))
		return nil, appErrors.NewStorageError("find user", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, appErrors.NewStorageError("unmarshal user", err)
	}

	return itemToUser(item), nil
}

// FindByEmail returns the user with the given email via the GSI, or nil if absent
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("EMAIL#%s", email)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, appErrors.NewStorageError("build email query", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		r.logger.Error("Failed to query user by email", zap.Error(err))
		return nil, appErrors.NewStorageError("find user by email", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, appErrors.NewStorageError("unmarshal user", err)
	}

	return itemToUser(item), nil
}

// Update replaces the stored user
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now().UTC()
	return r.Create(ctx, user)
}
