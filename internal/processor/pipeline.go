package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/junksamiad/template-sender-engine-sub000/internal/ai"
	"github.com/junksamiad/template-sender-engine-sub000/internal/metrics"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
	"github.com/junksamiad/template-sender-engine-sub000/internal/validation"
)

const roleAssistant = "assistant"

// run executes the ordered stages. Nothing after the conditional create runs
// for a delivery that lost the create.
func (p *Processor) run(ctx context.Context, d *delivery) error {
	var c models.ContextObject
	if err := json.Unmarshal([]byte(d.item.Body), &c); err != nil {
		return stageErr(KindValidation, "decode", fmt.Errorf("decode context object: %w", err))
	}
	d.ctxObj = &c
	if errs := validation.ValidateContext(&c); len(errs) > 0 {
		return stageErr(KindValidation, "invalid", errors.New(strings.Join(errs, "; ")))
	}

	key := c.Key()
	d.log = d.log.With("conversation_id", key.ConversationID, "channel_method", c.Request.ChannelMethod)
	settings, _ := c.ChannelSettings()

	// Idempotency gate.
	if err := p.deps.Store.CreateIfAbsent(ctx, initialRecord(&c, settings, p.now().UnixMilli())); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			p.logDuplicate(d)
			metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			return nil
		}
		return &StageError{Kind: KindPersistence, Detail: "create", Err: err}
	}
	d.log.Info("Conversation record created")

	aiCreds, err := p.resolveAI(ctx, &c)
	if err != nil {
		return err
	}
	channelCreds, err := p.resolveChannel(ctx, c.Request.ChannelMethod, settings.CredentialsReference)
	if err != nil {
		return err
	}

	gen, err := p.deps.Generator.Generate(ctx, conversationDetails(&c), aiCreds)
	if err != nil {
		return stageErr(KindGeneration, "", err)
	}

	sender, err := p.deps.Senders.For(c.Request.ChannelMethod)
	if err != nil {
		return stageErr(KindDispatch, "no_sender", err)
	}
	sent, err := sender.Send(ctx, channelCreds, key.PrimaryChannel, settings.Sender, gen.Content)
	if err != nil {
		return stageErr(KindDispatch, "", err)
	}
	d.dispatched = true
	d.log.Info("Message sent", "message_id", sent.MessageID)

	elapsed := p.now().Sub(d.started)
	t := store.Transition{
		Status:           models.StatusInitialMessageSent,
		ThreadID:         gen.ThreadID,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Message: models.MessageEntry{
			Role:             roleAssistant,
			Content:          messageContent(sent.Body, gen.Content),
			MessageID:        sent.MessageID,
			Timestamp:        p.now().UnixMilli(),
			PromptTokens:     gen.Usage.Prompt,
			CompletionTokens: gen.Usage.Completion,
			TotalTokens:      gen.Usage.Total,
		},
	}
	// The message is already out. A failed append must not trigger a retry,
	// which would be blocked by the create gate anyway.
	if err := p.deps.Store.AppendAndTransition(ctx, key, t); err != nil {
		d.log.Error("Message sent but record update failed",
			"manual_reconciliation_required", true,
			"message_id", sent.MessageID,
			"error", err)
	}

	d.hb.Stop()
	if err := d.hb.Err(); err != nil {
		return stageErr(KindLease, "", fmt.Errorf("visibility extension failed: %w", err))
	}

	metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeSent).Inc()
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	p.publish(ctx, d, models.StatusInitialMessageSent, sent.MessageID)
	d.log.Info("Delivery complete", "processing_time_ms", elapsed.Milliseconds())
	return nil
}

func (p *Processor) logDuplicate(d *delivery) {
	if d.item.DeliveryCount > 1 {
		d.log.Info("Redelivery of an existing conversation, acknowledging", "kind", KindDuplicate)
		return
	}
	d.log.Warn("Conversation already exists on first delivery, likely a duplicate request", "kind", KindDuplicate)
}

func (p *Processor) resolveAI(ctx context.Context, c *models.ContextObject) (secrets.AICredentials, error) {
	raw, err := p.deps.Secrets.Resolve(ctx, c.TenantConfig.AIConfig.APIKeyReference)
	if err != nil {
		return secrets.AICredentials{}, stageErr(KindCredentials, secrets.KindName(err), err)
	}
	creds, err := raw.AI()
	if err != nil {
		return secrets.AICredentials{}, stageErr(KindCredentials, secrets.KindName(err), err)
	}
	return creds, nil
}

// resolveChannel fetches the provider credentials and checks the fields the
// channel needs before anything is generated.
func (p *Processor) resolveChannel(ctx context.Context, channel, reference string) (secrets.Credentials, error) {
	raw, err := p.deps.Secrets.Resolve(ctx, reference)
	if err != nil {
		return nil, stageErr(KindCredentials, secrets.KindName(err), err)
	}
	switch strings.ToLower(channel) {
	case models.ChannelWhatsApp, models.ChannelSMS:
		_, err = raw.Twilio()
	case models.ChannelEmail:
		_, err = raw.Email()
	}
	if err != nil {
		return nil, stageErr(KindCredentials, secrets.KindName(err), err)
	}
	return raw, nil
}

func initialRecord(c *models.ContextObject, settings models.ChannelSettings, now int64) models.ConversationRecord {
	key := c.Key()
	return models.ConversationRecord{
		PrimaryChannel:     key.PrimaryChannel,
		ConversationID:     key.ConversationID,
		CompanyID:          c.Company.CompanyID,
		ProjectID:          c.Company.ProjectID,
		CompanyName:        c.TenantConfig.CompanyName,
		ProjectName:        c.TenantConfig.ProjectName,
		RequestID:          c.Request.RequestID,
		ChannelMethod:      strings.ToLower(c.Request.ChannelMethod),
		RecipientFirstName: c.Recipient.FirstName,
		RecipientLastName:  c.Recipient.LastName,
		RecipientTel:       c.Recipient.Tel,
		RecipientEmail:     c.Recipient.Email,
		CommsConsent:       c.Recipient.CommsConsent,
		SenderAddress:      settings.Sender,
		RouterVersion:      c.Metadata.RouterVersion,
		ConversationStatus: models.StatusProcessing,
		Messages:           []models.MessageEntry{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// conversationDetails carries names only. Recipient addresses stay out of the
// assistant thread.
func conversationDetails(c *models.ContextObject) ai.ConversationDetails {
	return ai.ConversationDetails{
		AssistantID:    c.TenantConfig.AIConfig.AssistantIDTemplateSender,
		ConversationID: c.Conversation.ConversationID,
		ChannelMethod:  strings.ToLower(c.Request.ChannelMethod),
		CompanyName:    c.TenantConfig.CompanyName,
		ProjectName:    c.TenantConfig.ProjectName,
		Recipient: map[string]any{
			"recipient_first_name": c.Recipient.FirstName,
			"recipient_last_name":  c.Recipient.LastName,
		},
		ProjectData: c.ProjectData,
	}
}

// messageContent prefers what the provider reports as sent and falls back to
// the template variables.
func messageContent(body string, vars map[string]any) string {
	if body != "" {
		return body
	}
	if vars == nil {
		vars = map[string]any{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return ""
	}
	return string(b)
}
