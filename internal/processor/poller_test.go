package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junksamiad/template-sender-engine-sub000/internal/ai"
	"github.com/junksamiad/template-sender-engine-sub000/internal/messaging"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
)

type fakeSource struct {
	mu         sync.Mutex
	batches    [][]types.Message
	receiveErr error
	deleted    []string
	deleteErr  map[string]error
}

func (s *fakeSource) Receive(ctx context.Context, _ string, _ int32, _ time.Duration) ([]types.Message, error) {
	s.mu.Lock()
	if s.receiveErr != nil {
		s.mu.Unlock()
		return nil, s.receiveErr
	}
	if len(s.batches) == 0 {
		s.mu.Unlock()
		// Behave like a long poll that outlives the caller.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	s.mu.Unlock()
	return b, nil
}

func (s *fakeSource) Delete(ctx context.Context, _ string, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[receiptHandle]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, receiptHandle)
	return nil
}

type stubBatch struct {
	failures []string
	got      []WorkItem
}

func (b *stubBatch) ProcessBatch(_ context.Context, items []WorkItem) BatchResult {
	b.got = append(b.got, items...)
	return BatchResult{Failures: b.failures}
}

func sqsMessage(id string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String("{}"),
		Attributes:    map[string]string{"ApproximateReceiveCount": "2"},
	}
}

func TestNewPoller_RequiresQueueURL(t *testing.T) {
	_, err := NewPoller(&fakeSource{}, &stubBatch{}, PollerConfig{}, nil)
	assert.Error(t, err)
}

func TestPollOnce_DeletesOnlySucceededMessages(t *testing.T) {
	src := &fakeSource{batches: [][]types.Message{{sqsMessage("a"), sqsMessage("b"), sqsMessage("c")}}}
	proc := &stubBatch{failures: []string{"b"}}
	p, err := NewPoller(src, proc, PollerConfig{QueueURL: "https://sqs.test/q"}, nil)
	require.NoError(t, err)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"rh-a", "rh-c"}, src.deleted)

	require.Len(t, proc.got, 3)
	assert.Equal(t, WorkItem{DeliveryID: "a", LeaseToken: "rh-a", DeliveryCount: 2, Body: "{}"}, proc.got[0])
}

func TestPollOnce_DeleteFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		batches:   [][]types.Message{{sqsMessage("a"), sqsMessage("b")}},
		deleteErr: map[string]error{"rh-a": errBoom},
	}
	p, err := NewPoller(src, &stubBatch{}, PollerConfig{QueueURL: "q"}, nil)
	require.NoError(t, err)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"rh-b"}, src.deleted)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	p, err := NewPoller(&fakeSource{receiveErr: errBoom}, &stubBatch{}, PollerConfig{QueueURL: "q"}, nil)
	require.NoError(t, err)

	_, err = p.PollOnce(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{batches: [][]types.Message{{sqsMessage("a")}}}
	proc := &stubBatch{}
	p, err := NewPoller(src, proc, PollerConfig{QueueURL: "q", ErrorBackoff: time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, proc.got, 1)
}

// ctxStore fails every call made on a cancelled context, like the SDK does.
type ctxStore struct {
	*memStore
}

func (s ctxStore) CreateIfAbsent(ctx context.Context, rec models.ConversationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.CreateIfAbsent(ctx, rec)
}

func (s ctxStore) AppendAndTransition(ctx context.Context, key models.ConversationKey, t store.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.AppendAndTransition(ctx, key, t)
}

func (s ctxStore) SetFailureStatus(ctx context.Context, key models.ConversationKey, status, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.SetFailureStatus(ctx, key, status, reason)
}

// cancelAfterSend simulates a shutdown signal arriving right after the
// provider accepted the message.
type cancelAfterSend struct {
	*fakeSender
	cancel context.CancelFunc
}

func (s cancelAfterSend) Send(ctx context.Context, creds secrets.Credentials, to, from string, vars map[string]any) (*messaging.Result, error) {
	res, err := s.fakeSender.Send(ctx, creds, to, from, vars)
	s.cancel()
	return res, err
}

type cancelDuringGenerate struct {
	cancel context.CancelFunc
}

func (g cancelDuringGenerate) Generate(context.Context, ai.ConversationDetails, secrets.AICredentials) (*ai.Result, error) {
	g.cancel()
	return nil, ai.ErrGeneration
}

func messageFor(item WorkItem) types.Message {
	return types.Message{
		MessageId:     aws.String(item.DeliveryID),
		ReceiptHandle: aws.String(item.LeaseToken),
		Body:          aws.String(item.Body),
	}
}

func TestPollOnce_ShutdownAfterSendStillRecordsAndDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)
	h.proc.deps.Store = ctxStore{h.store}
	h.proc.deps.Senders = messaging.NewRouter().
		Register(models.ChannelWhatsApp, cancelAfterSend{fakeSender: h.sender, cancel: cancel})

	item := workItem(t, "m1", 1, testContext("conv-A", "+15550001111"))
	src := &fakeSource{batches: [][]types.Message{{messageFor(item)}}}
	p, err := NewPoller(src, h.proc, PollerConfig{QueueURL: "q"}, nil)
	require.NoError(t, err)

	n, err := p.PollOnce(ctx)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Len(t, h.sender.sent(), 1)
	rec, ok := h.store.get(convKey("conv-A", "+15550001111"))
	require.True(t, ok)
	assert.Equal(t, models.StatusInitialMessageSent, rec.ConversationStatus)
	assert.Len(t, rec.Messages, 1)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"rh-m1"}, src.deleted)
}

func TestPollOnce_ShutdownDuringGenerationStillRecordsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t)
	h.proc.deps.Store = ctxStore{h.store}
	h.proc.deps.Generator = cancelDuringGenerate{cancel: cancel}

	item := workItem(t, "m1", 1, testContext("conv-A", "+15550001111"))
	src := &fakeSource{batches: [][]types.Message{{messageFor(item)}}}
	p, err := NewPoller(src, h.proc, PollerConfig{QueueURL: "q"}, nil)
	require.NoError(t, err)

	n, err := p.PollOnce(ctx)
	require.NoError(t, err)

	rec, _ := h.store.get(convKey("conv-A", "+15550001111"))
	assert.Equal(t, models.StatusFailedToProcessAI, rec.ConversationStatus)
	assert.Zero(t, n)
	assert.Empty(t, src.deleted)
}
