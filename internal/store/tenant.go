package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

// TenantStore reads per-project configuration from the company-data table.
type TenantStore struct {
	db        DynamoAPI
	tableName string
}

func NewTenantStore(db DynamoAPI, tableName string) (*TenantStore, error) {
	if db == nil {
		return nil, fmt.Errorf("dynamo client is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("company data table name is required")
	}
	return &TenantStore{db: db, tableName: tableName}, nil
}

// GetTenantConfig returns nil, nil when no row exists for the pair.
func (s *TenantStore) GetTenantConfig(ctx context.Context, companyID, projectID string) (*models.TenantConfig, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"company_id": &types.AttributeValueMemberS{Value: companyID},
			"project_id": &types.AttributeValueMemberS{Value: projectID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get tenant config: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var cfg models.TenantConfig
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, fmt.Errorf("get tenant config: unmarshal: %w", err)
	}
	return &cfg, nil
}
