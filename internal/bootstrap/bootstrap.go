// Package bootstrap builds the production object graph shared by the
// processor binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/junksamiad/template-sender-engine-sub000/internal/ai"
	"github.com/junksamiad/template-sender-engine-sub000/internal/config"
	"github.com/junksamiad/template-sender-engine-sub000/internal/events"
	"github.com/junksamiad/template-sender-engine-sub000/internal/heartbeat"
	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/messaging"
	"github.com/junksamiad/template-sender-engine-sub000/internal/metrics"
	"github.com/junksamiad/template-sender-engine-sub000/internal/processor"
	"github.com/junksamiad/template-sender-engine-sub000/internal/queue"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
)

// Processor is a ready-to-run processor plus the queue client it leases
// messages through.
type Processor struct {
	*processor.Processor
	Queue *queue.SQSClient
	close func()
}

// Close releases long-lived clients.
func (p *Processor) Close() {
	if p.close != nil {
		p.close()
	}
}

func NewProcessor(ctx context.Context, cfg config.ProcessorConfig, log *logger.Logger) (*Processor, error) {
	awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	conversations, err := store.NewConversationStore(store.NewDynamoClient(awsCfg, cfg.DynamoEndpoint), cfg.ConversationsTable)
	if err != nil {
		return nil, fmt.Errorf("init conversation store: %w", err)
	}

	sqsClient := queue.NewSQSClient(sqs.NewFromConfig(awsCfg))
	resolver := secrets.NewResolver(secretsmanager.NewFromConfig(awsCfg))
	generator := ai.NewGenerator(ai.NewClientFactory(cfg.OpenAIBaseURL), ai.Config{
		PollInterval: cfg.AIPollInterval,
		Timeout:      cfg.AITimeout,
	}, log)
	senders := messaging.DefaultRouter(
		messaging.NewTwilioSender(messaging.NewTwilioClient, log),
		messaging.NewSESSender(messaging.NewSESClient(awsCfg), log),
	)

	var publisher events.Publisher = events.Nop{}
	closeFn := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kp
		closeFn = func() {
			if err := kp.Close(); err != nil {
				log.Warn("Kafka publisher close failed", "error", err)
			}
		}
		log.Info("Conversation events enabled", "topic", cfg.KafkaTopic)
	}

	proc, err := processor.New(processor.Deps{
		Store:     conversations,
		Secrets:   resolver,
		Generator: generator,
		Senders:   senders,
		Heartbeats: func() processor.Heartbeat {
			return heartbeat.New(sqsClient, cfg.QueueURL, log, heartbeat.WithObserver(metrics.ObserveHeartbeat))
		},
		Events: publisher,
	}, processor.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		VisibilityExtend:  cfg.VisibilityExtend,
	}, log)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &Processor{Processor: proc, Queue: sqsClient, close: closeFn}, nil
}
