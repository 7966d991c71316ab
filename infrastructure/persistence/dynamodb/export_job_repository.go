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

// ExportJobRepository implements ports.ExportJobRepository on DynamoDB. Jobs
// partition by organization; the GSI partitions by status so startup
// recovery can find PENDING and PROCESSING jobs without a table scan.
type ExportJobRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewExportJobRepository creates a new ExportJobRepository
func NewExportJobRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *ExportJobRepository {
	return &ExportJobRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// exportJobItem represents the DynamoDB item structure for an export job
type exportJobItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK"`
	GSI1SK         string `dynamodbav:"GSI1SK"`
	EntityType     string `dynamodbav:"EntityType"`
	JobID          string `dynamodbav:"JobID"`
	OrganizationID string `dynamodbav:"OrganizationID"`
	StartDate      string `dynamodbav:"StartDate"`
	EndDate        string `dynamodbav:"EndDate"`
	Format         string `dynamodbav:"Format"`
	Status         string `dynamodbav:"Status"`
	FilePath       string `dynamodbav:"FilePath,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

func exportJobToItem(job *entities.ExportJob) exportJobItem {
	return exportJobItem{
		PK:             fmt.Sprintf("ORG#%s", job.OrganizationID),
		SK:             fmt.Sprintf("JOB#%s", job.ID),
		GSI1PK:         fmt.Sprintf("JOBSTATUS#%s", job.Status),
		GSI1SK:         job.CreatedAt.Format(time.RFC3339Nano),
		EntityType:     "EXPORT_JOB",
		JobID:          job.ID,
		OrganizationID: job.OrganizationID,
		StartDate:      job.StartDate.Format(time.RFC3339Nano),
		EndDate:        job.EndDate.Format(time.RFC3339Nano),
		Format:         job.Format,
		Status:         job.Status,
		FilePath:       job.FilePath,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func itemToExportJob(item exportJobItem) entities.ExportJob {
	start, _ := time.Parse(time.RFC3339Nano, item.StartDate)
	end, _ := time.Parse(time.RFC3339Nano, item.EndDate)
	created, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return entities.ExportJob{
		ID:             item.JobID,
		OrganizationID: item.OrganizationID,
		StartDate:      start,
		EndDate:        end,
		Format:         item.Format,
		Status:         item.Status,
		FilePath:       item.FilePath,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
}

// Create persists a new export job
func (r *ExportJobRepository) Create(ctx context.Context, job *entities.ExportJob) error {
	av, err := attributevalue.MarshalMap(exportJobToItem(job))
	if err != nil {
		return appErrors.NewStorageError("marshal export job", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("Failed to put export job", zap.String("jobID", job.ID), zap.Error(err))
		return appErrors.NewStorageError("create export job", err)
	}

	return nil
}

// FindByID retrieves an export job by organization and job id. Returns
// (nil, nil) when no job exists.
func (r *ExportJobRepository) FindByID(ctx context.Context, orgID, jobID string) (*entities.ExportJob, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       exportJobKey(orgID, jobID),
	})
	if err != nil {
		r.logger.Error("Failed to get export job", zap.String("jobID", jobID), zap.Error(err))
		return nil, appErrors.NewStorageError("find export job", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var item exportJobItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, appErrors.NewStorageError("unmarshal export job", err)
	}

	job := itemToExportJob(item)
	return &job, nil
}

// UpdateStatus transitions a job to the given status, recording the output
// file path when one exists. The GSI partition key moves with the status.
func (r *ExportJobRepository) UpdateStatus(ctx context.Context, orgID, jobID, status, filePath string) error {
	update := expression.Set(expression.Name("Status"), expression.Value(status)).
		Set(expression.Name("GSI1PK"), expression.Value(fmt.Sprintf("JOBSTATUS#%s", status))).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().Format(time.RFC3339Nano)))
	if filePath != "" {
		update = update.Set(expression.Name("FilePath"), expression.Value(filePath))
	}
	cond := expression.AttributeExists(expression.Name("PK"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return appErrors.NewStorageError("build job update", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       exportJobKey(orgID, jobID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		r.logger.Error("Failed to update export job status",
			zap.String("jobID", jobID),
			zap.String("status", status),
			zap.Error(err))
		return appErrors.NewStorageError("update export job", err)
	}

	return nil
}

// FindByStatus returns all jobs currently in any of the given statuses,
// oldest first within each status.
func (r *ExportJobRepository) FindByStatus(ctx context.Context, statuses ...string) ([]entities.ExportJob, error) {
	jobs := make([]entities.ExportJob, 0)

	for _, status := range statuses {
		keyExpr := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("JOBSTATUS#%s", status)))
		expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
		if err != nil {
			return nil, appErrors.NewStorageError("build job status query", err)
		}

		input := &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}

		paginator := dynamodb.NewQueryPaginator(r.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				r.logger.Error("Failed to query jobs by status", zap.String("status", status), zap.Error(err))
				return nil, appErrors.NewStorageError("list export jobs", err)
			}
			for _, raw := range page.Items {
				var item exportJobItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, appErrors.NewStorageError("unmarshal export job", err)
				}
				jobs = append(jobs, itemToExportJob(item))
			}
		}
	}

	return jobs, nil
}

func exportJobKey(orgID, jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORG#%s", orgID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("JOB#%s", jobID)},
	}
}
