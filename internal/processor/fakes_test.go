package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/template-sender-engine-sub000/internal/ai"
	"github.com/junksamiad/template-sender-engine-sub000/internal/events"
	"github.com/junksamiad/template-sender-engine-sub000/internal/messaging"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
)

const (
	aiRef     = "secret/ai"
	twilioRef = "secret/twilio"
	senderTel = "+15550009999"
)

// memStore mirrors the conditional semantics of the DynamoDB store.
type memStore struct {
	mu        sync.Mutex
	records   map[models.ConversationKey]*models.ConversationRecord
	createErr error
	appendErr error
	appends   int

	panicOnAppend bool
}

func newMemStore() *memStore {
	return &memStore{records: map[models.ConversationKey]*models.ConversationRecord{}}
}

func (s *memStore) CreateIfAbsent(_ context.Context, rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.records[rec.Key()]; ok {
		return store.ErrAlreadyExists
	}
	r := rec
	s.records[rec.Key()] = &r
	return nil
}

func (s *memStore) AppendAndTransition(_ context.Context, key models.ConversationKey, t store.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnAppend {
		panic("append exploded")
	}
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends++
	r, ok := s.records[key]
	if !ok {
		r = &models.ConversationRecord{PrimaryChannel: key.PrimaryChannel, ConversationID: key.ConversationID}
		s.records[key] = r
	}
	r.Messages = append(r.Messages, t.Message)
	r.ConversationStatus = t.Status
	if t.ThreadID != "" {
		r.ThreadID = t.ThreadID
	}
	if t.ProcessingTimeMs != 0 {
		r.ProcessingTimeMs = t.ProcessingTimeMs
	}
	r.TotalPromptTokens += t.Message.PromptTokens
	r.TotalCompletionTokens += t.Message.CompletionTokens
	r.TotalTokens += t.Message.TotalTokens
	return nil
}

func (s *memStore) SetFailureStatus(_ context.Context, key models.ConversationKey, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return store.ErrNotFound
	}
	r.ConversationStatus = status
	r.FailureReason = reason
	return nil
}

func (s *memStore) get(key models.ConversationKey) (models.ConversationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return models.ConversationRecord{}, false
	}
	return *r, true
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeResolver struct {
	mu       sync.Mutex
	creds    map[string]secrets.Credentials
	errs     map[string]error
	calls    []string
	onLookup func(reference string)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		creds: map[string]secrets.Credentials{
			aiRef: {"ai_api_key": "sk-test"},
			twilioRef: {
				"twilio_account_sid":  "AC123",
				"twilio_auth_token":   "tok",
				"twilio_template_sid": "HX123",
			},
		},
		errs: map[string]error{},
	}
}

func (r *fakeResolver) Resolve(_ context.Context, reference string) (secrets.Credentials, error) {
	r.mu.Lock()
	r.calls = append(r.calls, reference)
	hook := r.onLookup
	err := r.errs[reference]
	creds, ok := r.creds[reference]
	r.mu.Unlock()

	if hook != nil {
		hook(reference)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &secrets.ResolveError{Kind: secrets.ErrNotFound, Reference: reference}
	}
	return creds, nil
}

type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	result    *ai.Result
	err       error
	errByConv map[string]error
	panicMsg  string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		result: &ai.Result{
			Content:  map[string]any{"1": "hi"},
			ThreadID: "thread_1",
			Usage:    ai.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
		},
		errByConv: map[string]error{},
	}
}

func (g *fakeGenerator) Generate(_ context.Context, details ai.ConversationDetails, _ secrets.AICredentials) (*ai.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if err := g.errByConv[details.ConversationID]; err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type sendCall struct {
	To, From string
	Vars     map[string]any
}

type fakeSender struct {
	mu     sync.Mutex
	calls  []sendCall
	err    error
	result *messaging.Result // defaults to M1 with a JSON body
}

func (s *fakeSender) Send(_ context.Context, _ secrets.Credentials, to, from string, vars map[string]any) (*messaging.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{To: to, From: from, Vars: vars})
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		res := *s.result
		return &res, nil
	}
	return &messaging.Result{MessageID: "M1", Body: `{"1":"hi"}`}, nil
}

func (s *fakeSender) sent() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendCall(nil), s.calls...)
}

type fakeHeartbeat struct {
	mu       sync.Mutex
	startErr error
	err      error
	token    string
	starts   int
	stops    int
}

func (h *fakeHeartbeat) Start(leaseToken string, _, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
	h.token = leaseToken
	return h.startErr
}

func (h *fakeHeartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
}

func (h *fakeHeartbeat) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ConversationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ConversationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(context.Context, events.ConversationEvent) error {
	panic("publish exploded")
}

type harness struct {
	store     *memStore
	resolver  *fakeResolver
	generator *fakeGenerator
	sender    *fakeSender
	heartbeat *fakeHeartbeat
	events    *recordingPublisher
	proc      *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     newMemStore(),
		resolver:  newFakeResolver(),
		generator: newFakeGenerator(),
		sender:    &fakeSender{},
		heartbeat: &fakeHeartbeat{},
		events:    &recordingPublisher{},
	}
	senders := messaging.NewRouter().
		Register(models.ChannelWhatsApp, h.sender).
		Register(models.ChannelSMS, h.sender)
	proc, err := New(Deps{
		Store:      h.store,
		Secrets:    h.resolver,
		Generator:  h.generator,
		Senders:    senders,
		Heartbeats: func() Heartbeat { return h.heartbeat },
		Events:     h.events,
	}, Config{}, nil)
	require.NoError(t, err)
	h.proc = proc
	return h
}

func testContext(conversationID, tel string) models.ContextObject {
	return models.ContextObject{
		Metadata: models.ContextMetadata{RouterVersion: "test", ContextCreationTimestamp: "2026-01-02T03:04:05Z"},
		Request: models.RequestData{
			RequestID:               "req-" + conversationID,
			ChannelMethod:           models.ChannelWhatsApp,
			InitialRequestTimestamp: "2026-01-02T03:04:05Z",
		},
		Recipient: models.RecipientData{
			FirstName:    "Ada",
			LastName:     "Lovelace",
			Tel:          tel,
			CommsConsent: true,
		},
		Company:     models.CompanyRef{CompanyID: "ci-1", ProjectID: "pi-1"},
		ProjectData: map[string]any{"job": "engineer"},
		TenantConfig: models.TenantConfig{
			CompanyID:       "ci-1",
			ProjectID:       "pi-1",
			CompanyName:     "Acme",
			ProjectName:     "Recruiting",
			ProjectStatus:   models.ProjectStatusActive,
			AllowedChannels: []string{models.ChannelWhatsApp},
			AIConfig:        models.AIConfig{APIKeyReference: aiRef, AssistantIDTemplateSender: "asst_1"},
			ChannelConfig: models.ChannelConfig{
				WhatsApp: &models.ChannelSettings{CredentialsReference: twilioRef, Sender: senderTel},
			},
		},
		Conversation: models.ConversationRef{ConversationID: conversationID},
	}
}

func workItem(t *testing.T, id string, count int, c models.ContextObject) WorkItem {
	t.Helper()
	b, err := json.Marshal(c)
	require.NoError(t, err)
	return WorkItem{DeliveryID: id, LeaseToken: "rh-" + id, DeliveryCount: count, Body: string(b)}
}

var errBoom = errors.New("boom")
