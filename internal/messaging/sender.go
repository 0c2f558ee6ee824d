package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
)

// ErrDispatch wraps every send failure, whether the provider rejected the
// message or the call never completed.
var ErrDispatch = errors.New("message dispatch failed")

type Result struct {
	MessageID string
	Body      string
}

// Sender transmits one templated message. vars are the template variables
// produced by the assistant.
type Sender interface {
	Send(ctx context.Context, creds secrets.Credentials, to, from string, vars map[string]any) (*Result, error)
}

// Router picks the Sender for a channel method.
type Router struct {
	senders map[string]Sender
}

func NewRouter() *Router {
	return &Router{senders: map[string]Sender{}}
}

func (r *Router) Register(channel string, s Sender) *Router {
	r.senders[strings.ToLower(channel)] = s
	return r
}

func (r *Router) For(channel string) (Sender, error) {
	s, ok := r.senders[strings.ToLower(channel)]
	if !ok {
		return nil, fmt.Errorf("%w: no sender for channel %q", ErrDispatch, channel)
	}
	return s, nil
}

func checkInputs(creds secrets.Credentials, to, from string) error {
	switch {
	case len(creds) == 0:
		return fmt.Errorf("%w: credentials are required", ErrDispatch)
	case strings.TrimSpace(to) == "":
		return fmt.Errorf("%w: recipient address is required", ErrDispatch)
	case strings.TrimSpace(from) == "":
		return fmt.Errorf("%w: sender address is required", ErrDispatch)
	}
	return nil
}

// encodeVars serializes template variables locally; nothing is sent when this
// fails.
func encodeVars(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("%w: encode template variables: %v", ErrDispatch, err)
	}
	return string(b), nil
}

// DefaultRouter wires Twilio for whatsapp and sms and SES for email.
func DefaultRouter(twilio *TwilioSender, ses *SESSender) *Router {
	return NewRouter().
		Register(models.ChannelWhatsApp, twilio).
		Register(models.ChannelSMS, twilio.ForChannel(models.ChannelSMS)).
		Register(models.ChannelEmail, ses)
}
