package models

// Conversation statuses as stored in conversation_status.
const (
	StatusProcessing          = "processing"
	StatusInitialMessageSent  = "initial_message_sent"
	StatusFailedSecretsFetch  = "failed_secrets_fetch"
	StatusFailedToProcessAI   = "failed_to_process_ai"
	StatusFailedToSendMessage = "failed_to_send_message"
	StatusFailedUnknown       = "failed_unknown"
)

// ConversationKey addresses one ConversationRecord.
type ConversationKey struct {
	PrimaryChannel string `dynamodbav:"primary_channel" json:"primary_channel"`
	ConversationID string `dynamodbav:"conversation_id" json:"conversation_id"`
}

type MessageEntry struct {
	Role             string `dynamodbav:"role" json:"role"`
	Content          string `dynamodbav:"content" json:"content"`
	MessageID        string `dynamodbav:"message_id" json:"message_id"`
	Timestamp        int64  `dynamodbav:"timestamp" json:"timestamp"`
	PromptTokens     int    `dynamodbav:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int    `dynamodbav:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int    `dynamodbav:"total_tokens" json:"total_tokens"`
}

type ConversationRecord struct {
	// Keys
	PrimaryChannel string `dynamodbav:"primary_channel" json:"primary_channel"`
	ConversationID string `dynamodbav:"conversation_id" json:"conversation_id"`

	// Tenant / request (denormalized for querying)
	CompanyID          string `dynamodbav:"company_id" json:"company_id"`
	ProjectID          string `dynamodbav:"project_id" json:"project_id"`
	CompanyName        string `dynamodbav:"company_name" json:"company_name"`
	ProjectName        string `dynamodbav:"project_name" json:"project_name"`
	RequestID          string `dynamodbav:"request_id" json:"request_id"`
	ChannelMethod      string `dynamodbav:"channel_method" json:"channel_method"`
	RecipientFirstName string `dynamodbav:"recipient_first_name" json:"recipient_first_name"`
	RecipientLastName  string `dynamodbav:"recipient_last_name" json:"recipient_last_name"`
	RecipientTel       string `dynamodbav:"recipient_tel,omitempty" json:"recipient_tel,omitempty"`
	RecipientEmail     string `dynamodbav:"recipient_email,omitempty" json:"recipient_email,omitempty"`
	CommsConsent       bool   `dynamodbav:"comms_consent" json:"comms_consent"`
	SenderAddress      string `dynamodbav:"sender_address" json:"sender_address"`
	RouterVersion      string `dynamodbav:"router_version" json:"router_version"`

	// State
	ConversationStatus string         `dynamodbav:"conversation_status" json:"conversation_status"`
	FailureReason      string         `dynamodbav:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Messages           []MessageEntry `dynamodbav:"messages" json:"messages"`
	ThreadID           string         `dynamodbav:"thread_id,omitempty" json:"thread_id,omitempty"`
	ProcessingTimeMs   int64          `dynamodbav:"processing_time_ms" json:"processing_time_ms"`

	// Token counters across all messages
	TotalPromptTokens     int `dynamodbav:"total_prompt_tokens" json:"total_prompt_tokens"`
	TotalCompletionTokens int `dynamodbav:"total_completion_tokens" json:"total_completion_tokens"`
	TotalTokens           int `dynamodbav:"total_tokens" json:"total_tokens"`

	// Timestamps (epoch ms)
	CreatedAt int64 `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt int64 `dynamodbav:"updated_at" json:"updated_at"`
}

func (r ConversationRecord) Key() ConversationKey {
	return ConversationKey{PrimaryChannel: r.PrimaryChannel, ConversationID: r.ConversationID}
}
