// Package ai drives an assistant thread to produce the structured content
// variables for an outbound template message.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
)

const (
	DefaultPollInterval = time.Second
	// DefaultTimeout must stay below the processor's 10 minute budget.
	DefaultTimeout = 9 * time.Minute
)

// ErrGeneration wraps every generation failure.
var ErrGeneration = errors.New("ai generation failed")

// AssistantAPI is the subset of the OpenAI Assistants API the generator uses.
// *openai.Client satisfies it.
type AssistantAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

// ClientFactory builds an API client for one tenant's key.
type ClientFactory func(apiKey string) AssistantAPI

// NewClientFactory returns a factory producing real OpenAI clients. baseURL
// may be empty.
func NewClientFactory(baseURL string) ClientFactory {
	return func(apiKey string) AssistantAPI {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = strings.TrimRight(baseURL, "/")
		}
		return openai.NewClientWithConfig(cfg)
	}
}

// ConversationDetails is the context posted into the thread. It carries data
// only; instructions live in the assistant configuration.
type ConversationDetails struct {
	AssistantID    string         `json:"-"`
	ConversationID string         `json:"conversation_id"`
	ChannelMethod  string         `json:"channel_method"`
	CompanyName    string         `json:"company_name"`
	ProjectName    string         `json:"project_name"`
	Recipient      map[string]any `json:"recipient"`
	ProjectData    map[string]any `json:"project_data,omitempty"`
}

type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

type Result struct {
	Content  map[string]any
	ThreadID string
	Usage    TokenUsage
}

type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

type Generator struct {
	newClient ClientFactory
	cfg       Config
	log       *logger.Logger
}

func NewGenerator(factory ClientFactory, cfg Config, log *logger.Logger) *Generator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{newClient: factory, cfg: cfg, log: log.With("component", "AIGenerator")}
}

// Generate always starts a new thread so retries never see earlier history.
func (g *Generator) Generate(ctx context.Context, details ConversationDetails, creds secrets.AICredentials) (*Result, error) {
	log := g.log.With("conversation_id", details.ConversationID)

	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, g.fail(log, "missing api key", nil)
	}
	if strings.TrimSpace(details.AssistantID) == "" {
		return nil, g.fail(log, "missing assistant id", nil)
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, g.fail(log, "marshal conversation details", err)
	}

	client := g.newClient(creds.APIKey)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	thread, err := client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return nil, g.fail(log, "create thread", err)
	}
	log = log.With("thread_id", thread.ID)

	if _, err := client.CreateMessage(ctx, thread.ID, openai.MessageRequest{
		Role:    "user",
		Content: string(payload),
	}); err != nil {
		return nil, g.fail(log, "add message to thread", err)
	}

	run, err := client.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: details.AssistantID})
	if err != nil {
		return nil, g.fail(log, "create run", err)
	}
	log = log.With("run_id", run.ID)

	run, err = g.waitForRun(ctx, client, thread.ID, run)
	if err != nil {
		return nil, g.fail(log, "run did not complete", err)
	}

	text, err := latestAssistantText(ctx, client, thread.ID)
	if err != nil {
		return nil, g.fail(log, "read assistant reply", err)
	}

	content, err := ParseContent(text)
	if err != nil {
		return nil, g.fail(log, "parse assistant reply", err)
	}

	res := &Result{
		Content:  content,
		ThreadID: thread.ID,
		Usage: TokenUsage{
			Prompt:     run.Usage.PromptTokens,
			Completion: run.Usage.CompletionTokens,
			Total:      run.Usage.TotalTokens,
		},
	}
	log.Info("Assistant run completed",
		"prompt_tokens", res.Usage.Prompt,
		"completion_tokens", res.Usage.Completion,
		"total_tokens", res.Usage.Total,
	)
	return res, nil
}

func (g *Generator) waitForRun(ctx context.Context, client AssistantAPI, threadID string, run openai.Run) (openai.Run, error) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			if run.LastError != nil {
				return run, fmt.Errorf("run %s: %s: %s", run.Status, run.LastError.Code, run.LastError.Message)
			}
			return run, fmt.Errorf("run %s", run.Status)
		case openai.RunStatusRequiresAction:
			return run, errors.New("run requires action, tool calls are not supported")
		}

		select {
		case <-ctx.Done():
			return run, fmt.Errorf("timed out waiting for run (last status %q): %w", run.Status, ctx.Err())
		case <-ticker.C:
		}

		next, err := client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("retrieve run: %w", err)
		}
		run = next
	}
}

func latestAssistantText(ctx context.Context, client AssistantAPI, threadID string) (string, error) {
	limit := 10
	order := "desc"
	list, err := client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", err
	}
	for _, m := range list.Messages {
		if m.Role != "assistant" {
			continue
		}
		for _, c := range m.Content {
			if c.Type == "text" && c.Text != nil && strings.TrimSpace(c.Text.Value) != "" {
				return c.Text.Value, nil
			}
		}
		return "", errors.New("latest assistant message has no text content")
	}
	return "", errors.New("no assistant message in thread")
}

func (g *Generator) fail(log *logger.Logger, reason string, err error) error {
	if err != nil {
		log.Error("AI generation failed", "reason", reason, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrGeneration, reason, err)
	}
	log.Error("AI generation failed", "reason", reason)
	return fmt.Errorf("%w: %s", ErrGeneration, reason)
}
