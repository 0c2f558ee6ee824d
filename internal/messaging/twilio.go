package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
)

// MessageCreator is the Twilio Messages resource.
type MessageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioClientFactory builds a client for one tenant's account.
type TwilioClientFactory func(accountSID, authToken string) MessageCreator

func NewTwilioClient(accountSID, authToken string) MessageCreator {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	}).Api
}

// TwilioSender sends Content API template messages over WhatsApp or SMS.
type TwilioSender struct {
	newClient TwilioClientFactory
	channel   string
	log       *logger.Logger
}

func NewTwilioSender(factory TwilioClientFactory, log *logger.Logger) *TwilioSender {
	if factory == nil {
		factory = NewTwilioClient
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TwilioSender{newClient: factory, channel: models.ChannelWhatsApp, log: log.With("component", "TwilioSender")}
}

// ForChannel returns a copy of s sending on channel (whatsapp or sms).
func (s *TwilioSender) ForChannel(channel string) *TwilioSender {
	cp := *s
	cp.channel = channel
	cp.log = s.log.With("channel", channel)
	return &cp
}

func (s *TwilioSender) Send(ctx context.Context, creds secrets.Credentials, to, from string, vars map[string]any) (*Result, error) {
	if err := checkInputs(creds, to, from); err != nil {
		s.log.Error("Twilio send rejected before request", "error", err)
		return nil, err
	}
	tc, err := creds.Twilio()
	if err != nil {
		s.log.Error("Twilio credentials incomplete", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	contentVars, err := encodeVars(vars)
	if err != nil {
		s.log.Error("Twilio content variables not serializable", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(s.address(to))
	params.SetFrom(s.address(from))
	params.SetContentSid(tc.TemplateSID)
	params.SetContentVariables(contentVars)

	resp, err := s.newClient(tc.AccountSID, tc.AuthToken).CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			s.log.Error("Twilio rejected message",
				"status", restErr.Status,
				"code", restErr.Code,
				"message", restErr.Message,
				"more_info", restErr.MoreInfo,
			)
		} else {
			s.log.Error("Twilio request failed", "error", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		s.log.Error("Twilio response missing message sid")
		return nil, fmt.Errorf("%w: response missing message sid", ErrDispatch)
	}

	res := &Result{MessageID: *resp.Sid}
	if resp.Body != nil {
		res.Body = *resp.Body
	}
	s.log.Info("Twilio message sent", "message_sid", res.MessageID)
	return res, nil
}

func (s *TwilioSender) address(addr string) string {
	addr = strings.TrimSpace(addr)
	if s.channel == models.ChannelWhatsApp && !strings.HasPrefix(addr, "whatsapp:") {
		return "whatsapp:" + addr
	}
	return addr
}
