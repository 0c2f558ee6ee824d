package processor

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/queue"
)

// MessageSource is the queue surface the Poller needs. *queue.SQSClient
// satisfies it.
type MessageSource interface {
	Receive(ctx context.Context, queueURL string, max int32, wait time.Duration) ([]types.Message, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
}

// BatchProcessor handles one received batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, items []WorkItem) BatchResult
}

type PollerConfig struct {
	QueueURL    string
	MaxMessages int32
	WaitTime    time.Duration
	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

// Poller is the long-running alternative to the Lambda trigger: receive a
// batch, process it, delete only what succeeded.
type Poller struct {
	src  MessageSource
	proc BatchProcessor
	cfg  PollerConfig
	log  *logger.Logger
}

func NewPoller(src MessageSource, proc BatchProcessor, cfg PollerConfig, log *logger.Logger) (*Poller, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("poller: queue url is required")
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = 20 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 500 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{src: src, proc: proc, cfg: cfg, log: log.With("component", "Poller")}, nil
}

// Run polls until ctx is cancelled. Cancellation is only observed between
// batches; a received batch always runs to completion.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Poller started", "queue_url", p.cfg.QueueURL, "max_messages", p.cfg.MaxMessages)
	for {
		if err := ctx.Err(); err != nil {
			p.log.Info("Poller stopped")
			return nil
		}
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Warn("Receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives and processes a single batch. It returns how many
// messages were deleted. Only the receive observes ctx cancellation; a
// leased batch is processed and deleted on a context shutdown cannot cancel.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	msgs, err := p.src.Receive(ctx, p.cfg.QueueURL, p.cfg.MaxMessages, p.cfg.WaitTime)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	items := make([]WorkItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, WorkItem{
			DeliveryID:    aws.ToString(m.MessageId),
			LeaseToken:    aws.ToString(m.ReceiptHandle),
			DeliveryCount: receiveCount(m.Attributes[queue.ReceiveCountAttr]),
			Body:          aws.ToString(m.Body),
		})
	}

	work := context.WithoutCancel(ctx)
	res := p.proc.ProcessBatch(work, items)
	failed := make(map[string]bool, len(res.Failures))
	for _, id := range res.Failures {
		failed[id] = true
	}

	deleted := 0
	for _, item := range items {
		if failed[item.DeliveryID] {
			continue
		}
		// Not fatal: a message that survives is redelivered and stopped by
		// the create gate.
		if err := p.src.Delete(work, p.cfg.QueueURL, item.LeaseToken); err != nil {
			p.log.Warn("Delete failed", "delivery_id", item.DeliveryID, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
