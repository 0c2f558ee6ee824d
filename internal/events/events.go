package events

import "context"

// ConversationEvent is emitted once per terminal pipeline outcome.
type ConversationEvent struct {
	ConversationID string `json:"conversation_id"`
	PrimaryChannel string `json:"primary_channel"`
	ChannelMethod  string `json:"channel_method"`
	CompanyID      string `json:"company_id"`
	ProjectID      string `json:"project_id"`
	Status         string `json:"status"`
	MessageID      string `json:"message_id,omitempty"`
	At             int64  `json:"at"` // epoch ms
}

type Publisher interface {
	Publish(ctx context.Context, ev ConversationEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, ConversationEvent) error { return nil }
