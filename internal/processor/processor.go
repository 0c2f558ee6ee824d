// Package processor consumes queued context objects and drives each through
// the conversation pipeline: create record, resolve credentials, generate
// content, send, record the result.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/junksamiad/template-sender-engine-sub000/internal/ai"
	"github.com/junksamiad/template-sender-engine-sub000/internal/events"
	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/messaging"
	"github.com/junksamiad/template-sender-engine-sub000/internal/metrics"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
)

// WorkItem is one delivery of a queued context object.
type WorkItem struct {
	DeliveryID string
	// LeaseToken is the SQS receipt handle.
	LeaseToken    string
	DeliveryCount int
	Body          string
}

// BatchResult lists the delivery ids that must be redelivered.
type BatchResult struct {
	Failures []string
}

type ConversationStore interface {
	CreateIfAbsent(ctx context.Context, rec models.ConversationRecord) error
	AppendAndTransition(ctx context.Context, key models.ConversationKey, t store.Transition) error
	SetFailureStatus(ctx context.Context, key models.ConversationKey, status, reason string) error
}

type CredentialResolver interface {
	Resolve(ctx context.Context, reference string) (secrets.Credentials, error)
}

type Generator interface {
	Generate(ctx context.Context, details ai.ConversationDetails, creds secrets.AICredentials) (*ai.Result, error)
}

type SenderSelector interface {
	For(channel string) (messaging.Sender, error)
}

type Heartbeat interface {
	Start(leaseToken string, extendBy, interval time.Duration) error
	Stop()
	Err() error
}

// HeartbeatFactory returns a fresh Heartbeat for one delivery.
type HeartbeatFactory func() Heartbeat

type Deps struct {
	Store      ConversationStore
	Secrets    CredentialResolver
	Generator  Generator
	Senders    SenderSelector
	Heartbeats HeartbeatFactory // optional
	Events     events.Publisher // optional
}

type Config struct {
	HeartbeatInterval time.Duration
	VisibilityExtend  time.Duration
}

const (
	DefaultHeartbeatInterval = 5 * time.Minute
	DefaultVisibilityExtend  = 10 * time.Minute
)

type Processor struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

func New(deps Deps, cfg Config, log *logger.Logger) (*Processor, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("processor: store is required")
	case deps.Secrets == nil:
		return nil, errors.New("processor: credential resolver is required")
	case deps.Generator == nil:
		return nil, errors.New("processor: generator is required")
	case deps.Senders == nil:
		return nil, errors.New("processor: senders are required")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.VisibilityExtend <= 0 {
		cfg.VisibilityExtend = DefaultVisibilityExtend
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		deps: deps,
		cfg:  cfg,
		log:  log.With("component", "ChannelProcessor"),
		now:  time.Now,
	}, nil
}

// ProcessBatch handles items one after another. A failing item never affects
// the others.
func (p *Processor) ProcessBatch(ctx context.Context, items []WorkItem) BatchResult {
	res := BatchResult{Failures: []string{}}
	for _, item := range items {
		if err := p.ProcessItem(ctx, item); err != nil {
			res.Failures = append(res.Failures, item.DeliveryID)
		}
	}
	p.log.Info("Batch processed", "items", len(items), "failures", len(res.Failures))
	return res
}

// delivery holds what is known about one item as the pipeline advances, so the
// failure handler can address the record even after a partial run.
type delivery struct {
	item    WorkItem
	started time.Time
	ctxObj  *models.ContextObject
	hb      Heartbeat
	log     *logger.Logger

	// dispatched is set once the provider accepted the message. Nothing
	// after that point may fail the delivery or overwrite the status.
	dispatched bool
}

// ProcessItem runs the pipeline for one delivery. A nil error means the item
// can be acknowledged, which includes detected duplicates.
func (p *Processor) ProcessItem(ctx context.Context, item WorkItem) (err error) {
	d := &delivery{
		item:    item,
		started: p.now(),
		log:     p.log.With("delivery_id", item.DeliveryID, "delivery_count", item.DeliveryCount),
	}
	d.hb = p.startHeartbeat(d)

	defer func() {
		if r := recover(); r != nil {
			if d.dispatched {
				d.log.Error("Pipeline panic after message was sent",
					"manual_reconciliation_required", true,
					"panic", r)
				err = nil
			} else {
				d.log.Error("Pipeline panic", "panic", r)
				err = stageErr(KindUnknown, "panic", fmt.Errorf("panic: %v", r))
			}
		}
		d.hb.Stop()
		if err != nil {
			p.handleFailure(ctx, d, err)
		}
	}()

	return p.run(ctx, d)
}

func (p *Processor) startHeartbeat(d *delivery) Heartbeat {
	if d.item.LeaseToken == "" || p.deps.Heartbeats == nil {
		d.log.Warn("No lease handle, heartbeat disabled")
		return noHeartbeat{}
	}
	hb := p.deps.Heartbeats()
	if err := hb.Start(d.item.LeaseToken, p.cfg.VisibilityExtend, p.cfg.HeartbeatInterval); err != nil {
		d.log.Warn("Heartbeat failed to start, continuing without it", "error", err)
		return noHeartbeat{}
	}
	return hb
}

// handleFailure is the single error funnel: log, classify, best-effort status
// write. Its own failures are only logged.
func (p *Processor) handleFailure(ctx context.Context, d *delivery, err error) {
	se := asStageError(err)
	metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	metrics.FailuresTotal.WithLabelValues(string(se.Kind), se.Detail).Inc()

	log := d.log
	var key models.ConversationKey
	if d.ctxObj != nil {
		key = d.ctxObj.Key()
		log = log.With("conversation_id", key.ConversationID, "primary_channel", key.PrimaryChannel)
	}
	log.Error("Delivery failed", "kind", se.Kind, "detail", se.Detail, "status", se.Status, "error", se.Err)

	if se.Status == "" {
		return
	}
	if key.PrimaryChannel == "" || key.ConversationID == "" {
		log.Warn("Cannot record failure status, conversation key unavailable")
		return
	}

	if serr := p.deps.Store.SetFailureStatus(ctx, key, se.Status, se.Error()); serr != nil {
		if errors.Is(serr, store.ErrNotFound) {
			log.Info("No conversation record to mark failed", "status", se.Status)
		} else {
			log.Error("Failed to record failure status", "status", se.Status, "error", serr)
		}
		return
	}
	p.publish(ctx, d, se.Status, "")
}

func (p *Processor) publish(ctx context.Context, d *delivery, status, messageID string) {
	if d.ctxObj == nil {
		return
	}
	key := d.ctxObj.Key()
	ev := events.ConversationEvent{
		ConversationID: key.ConversationID,
		PrimaryChannel: key.PrimaryChannel,
		ChannelMethod:  d.ctxObj.Request.ChannelMethod,
		CompanyID:      d.ctxObj.Company.CompanyID,
		ProjectID:      d.ctxObj.Company.ProjectID,
		Status:         status,
		MessageID:      messageID,
		At:             p.now().UnixMilli(),
	}
	if err := p.deps.Events.Publish(ctx, ev); err != nil {
		d.log.Warn("Conversation event publish failed", "status", status, "error", err)
	}
}

type noHeartbeat struct{}

func (noHeartbeat) Start(string, time.Duration, time.Duration) error { return nil }
func (noHeartbeat) Stop()                                            {}
func (noHeartbeat) Err() error                                       { return nil }
