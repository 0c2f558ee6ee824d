package models

import "strings"

const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
)

// Channels is the closed set of supported channel methods.
var Channels = []string{ChannelWhatsApp, ChannelSMS, ChannelEmail}

func IsChannel(s string) bool {
	for _, c := range Channels {
		if c == s {
			return true
		}
	}
	return false
}

// ContextObject is the work item payload built by the router and consumed by
// the processor.
type ContextObject struct {
	Metadata     ContextMetadata `json:"metadata"`
	Request      RequestData     `json:"request"`
	Recipient    RecipientData   `json:"recipient"`
	Company      CompanyRef      `json:"company"`
	ProjectData  map[string]any  `json:"project_data,omitempty"`
	TenantConfig TenantConfig    `json:"tenant_config"`
	Conversation ConversationRef `json:"conversation"`
}

type ContextMetadata struct {
	RouterVersion            string `json:"router_version"`
	ContextCreationTimestamp string `json:"context_creation_timestamp"`
}

type RequestData struct {
	RequestID               string `json:"request_id"`
	ChannelMethod           string `json:"channel_method"`
	InitialRequestTimestamp string `json:"initial_request_timestamp"`
}

type RecipientData struct {
	FirstName    string `json:"recipient_first_name"`
	LastName     string `json:"recipient_last_name"`
	Tel          string `json:"recipient_tel,omitempty"`
	Email        string `json:"recipient_email,omitempty"`
	CommsConsent bool   `json:"comms_consent"`
}

type CompanyRef struct {
	CompanyID string `json:"company_id"`
	ProjectID string `json:"project_id"`
}

type ConversationRef struct {
	ConversationID string `json:"conversation_id"`
}

// PrimaryChannel returns the recipient address the conversation is keyed on,
// which depends on the channel method.
func (c *ContextObject) PrimaryChannel() string {
	switch strings.ToLower(c.Request.ChannelMethod) {
	case ChannelWhatsApp, ChannelSMS:
		return strings.TrimSpace(c.Recipient.Tel)
	case ChannelEmail:
		return strings.TrimSpace(c.Recipient.Email)
	default:
		return ""
	}
}

func (c *ContextObject) Key() ConversationKey {
	return ConversationKey{PrimaryChannel: c.PrimaryChannel(), ConversationID: c.Conversation.ConversationID}
}

// ChannelSettings returns the tenant's config for the request's channel.
func (c *ContextObject) ChannelSettings() (ChannelSettings, bool) {
	return c.TenantConfig.Channel(c.Request.ChannelMethod)
}
