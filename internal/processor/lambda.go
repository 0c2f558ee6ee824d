package processor

import (
	"context"
	"strconv"

	lambdaevents "github.com/aws/aws-lambda-go/events"

	"github.com/junksamiad/template-sender-engine-sub000/internal/queue"
)

// WorkItemFromSQS converts one Lambda SQS record.
func WorkItemFromSQS(m lambdaevents.SQSMessage) WorkItem {
	return WorkItem{
		DeliveryID:    m.MessageId,
		LeaseToken:    m.ReceiptHandle,
		DeliveryCount: receiveCount(m.Attributes[queue.ReceiveCountAttr]),
		Body:          m.Body,
	}
}

// HandleSQSEvent is the Lambda entry point. It reports partial batch
// failures and never returns an error, so succeeded records are deleted.
func (p *Processor) HandleSQSEvent(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	items := make([]WorkItem, 0, len(ev.Records))
	for _, r := range ev.Records {
		items = append(items, WorkItemFromSQS(r))
	}
	res := p.ProcessBatch(ctx, items)

	resp := lambdaevents.SQSEventResponse{
		BatchItemFailures: make([]lambdaevents.SQSBatchItemFailure, 0, len(res.Failures)),
	}
	for _, id := range res.Failures {
		resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return resp, nil
}

// receiveCount defaults to 1 when the attribute is absent or malformed.
func receiveCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
