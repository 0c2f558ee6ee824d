package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of *sqs.Client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

type SQSClient struct {
	api     SQSAPI
	timeout time.Duration
}

func NewSQSClient(api SQSAPI) *SQSClient {
	return &SQSClient{api: api, timeout: 5 * time.Second}
}

// Enqueue sends body to queueURL and returns the SQS message id.
func (c *SQSClient) Enqueue(ctx context.Context, queueURL, body string, attrs map[string]string) (string, error) {
	if queueURL == "" {
		return "", fmt.Errorf("enqueue: queue url is required")
	}
	msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		msgAttrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	// small timeout so the API doesn't hang if SQS is unreachable
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.api.SendMessage(cctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// ExtendVisibility sets the message's visibility timeout to extendBy from now.
func (c *SQSClient) ExtendVisibility(ctx context.Context, queueURL, receiptHandle string, extendBy time.Duration) error {
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(extendBy / time.Second),
	})
	if err != nil {
		return fmt.Errorf("change message visibility: %w", err)
	}
	return nil
}

// Receive long-polls queueURL for up to max messages.
func (c *SQSClient) Receive(ctx context.Context, queueURL string, max int32, wait time.Duration) ([]types.Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(queueURL),
		MaxNumberOfMessages:         max,
		WaitTimeSeconds:             int32(wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Delete acknowledges a message so it is not redelivered.
func (c *SQSClient) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	// small safety timeout
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.DeleteMessage(cctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}
