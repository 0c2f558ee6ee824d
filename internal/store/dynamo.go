package store

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

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

var (
	// ErrAlreadyExists is returned by CreateIfAbsent when a record with the
	// same key was written before. The existing record is left untouched.
	ErrAlreadyExists = errors.New("conversation record already exists")
	// ErrNotFound is returned when an update targets a key with no record.
	ErrNotFound = errors.New("conversation record not found")
)

// DynamoAPI is the subset of *dynamodb.Client the stores use.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// NewDynamoClient builds a DynamoDB client. A non-empty endpoint points the
// client at DynamoDB Local.
func NewDynamoClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

type ConversationStore struct {
	db        DynamoAPI
	tableName string
	now       func() time.Time
}

func NewConversationStore(db DynamoAPI, tableName string) (*ConversationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("dynamo client is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("conversations table name is required")
	}
	return &ConversationStore{db: db, tableName: tableName, now: time.Now}, nil
}

// CreateIfAbsent writes the initial record in status processing. The write is
// conditional on the key not existing, so for any key at most one call ever
// succeeds.
func (s *ConversationStore) CreateIfAbsent(ctx context.Context, rec models.ConversationRecord) error {
	if rec.PrimaryChannel == "" || rec.ConversationID == "" {
		return fmt.Errorf("create conversation: primary_channel and conversation_id are required")
	}
	nowMs := s.now().UnixMilli()
	rec.ConversationStatus = models.StatusProcessing
	rec.Messages = []models.MessageEntry{}
	rec.ThreadID = ""
	rec.FailureReason = ""
	rec.ProcessingTimeMs = 0
	rec.TotalPromptTokens = 0
	rec.TotalCompletionTokens = 0
	rec.TotalTokens = 0
	rec.CreatedAt = nowMs
	rec.UpdatedAt = nowMs

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("create conversation: marshal: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(primary_channel) AND attribute_not_exists(conversation_id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// Transition is the terminal update applied after a successful send.
type Transition struct {
	Status           string
	ThreadID         string // left unchanged when empty
	ProcessingTimeMs int64  // left unchanged when zero
	Message          models.MessageEntry
}

// AppendAndTransition appends exactly one message and sets the status. It does
// not look at the current status.
func (s *ConversationStore) AppendAndTransition(ctx context.Context, key models.ConversationKey, t Transition) error {
	if t.Status == "" {
		return fmt.Errorf("append message: status is required")
	}
	msg, err := attributevalue.Marshal(t.Message)
	if err != nil {
		return fmt.Errorf("append message: marshal: %w", err)
	}

	expr := "SET messages = list_append(if_not_exists(messages, :empty), :msg), #st = :st, updated_at = :u"
	values := map[string]types.AttributeValue{
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":msg":   &types.AttributeValueMemberL{Value: []types.AttributeValue{msg}},
		":st":    &types.AttributeValueMemberS{Value: t.Status},
		":u":     numberAV(s.now().UnixMilli()),
		":pt":    numberAV(int64(t.Message.PromptTokens)),
		":ct":    numberAV(int64(t.Message.CompletionTokens)),
		":tt":    numberAV(int64(t.Message.TotalTokens)),
	}
	if t.ThreadID != "" {
		expr += ", thread_id = :tid"
		values[":tid"] = &types.AttributeValueMemberS{Value: t.ThreadID}
	}
	if t.ProcessingTimeMs > 0 {
		expr += ", processing_time_ms = :ptm"
		values[":ptm"] = numberAV(t.ProcessingTimeMs)
	}
	expr += " ADD total_prompt_tokens :pt, total_completion_tokens :ct, total_tokens :tt"

	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       keyAV(key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  map[string]string{"#st": "conversation_status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// SetFailureStatus records a failure status on an existing record. Messages and
// thread_id are never touched, and a missing record is not created.
func (s *ConversationStore) SetFailureStatus(ctx context.Context, key models.ConversationKey, status, reason string) error {
	if key.PrimaryChannel == "" || key.ConversationID == "" {
		return fmt.Errorf("set failure status: incomplete key")
	}
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAV(key),
		ConditionExpression: aws.String("attribute_exists(primary_channel)"),
		UpdateExpression:    aws.String("SET #st = :st, failure_reason = :fr, updated_at = :u"),
		ExpressionAttributeNames: map[string]string{
			"#st": "conversation_status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st": &types.AttributeValueMemberS{Value: status},
			":fr": &types.AttributeValueMemberS{Value: reason},
			":u":  numberAV(s.now().UnixMilli()),
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotFound
		}
		return fmt.Errorf("set failure status: %w", err)
	}
	return nil
}

func (s *ConversationStore) GetConversation(ctx context.Context, key models.ConversationKey) (*models.ConversationRecord, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAV(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	var rec models.ConversationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func keyAV(key models.ConversationKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"primary_channel": &types.AttributeValueMemberS{Value: key.PrimaryChannel},
		"conversation_id": &types.AttributeValueMemberS{Value: key.ConversationID},
	}
}

func numberAV(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
