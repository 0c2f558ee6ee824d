package messaging

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/secrets"
)

type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends templated email. The SES template is named by the tenant's
// email credentials; the sender address comes from the channel config.
type SESSender struct {
	client SESAPI
	log    *logger.Logger
}

func NewSESSender(client SESAPI, log *logger.Logger) *SESSender {
	if log == nil {
		log = logger.Nop()
	}
	return &SESSender{client: client, log: log.With("component", "SESSender")}
}

func NewSESClient(cfg aws.Config) *sesv2.Client {
	return sesv2.NewFromConfig(cfg)
}

func (s *SESSender) Send(ctx context.Context, creds secrets.Credentials, to, from string, vars map[string]any) (*Result, error) {
	if err := checkInputs(creds, to, from); err != nil {
		s.log.Error("SES send rejected before request", "error", err)
		return nil, err
	}
	ec, err := creds.Email()
	if err != nil {
		s.log.Error("Email credentials incomplete", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	data, err := encodeVars(vars)
	if err != nil {
		s.log.Error("Email template data not serializable", "error", err)
		return nil, err
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(ec.TemplateName),
				TemplateData: aws.String(data),
			},
		},
	}
	if ec.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(ec.ConfigurationSet)
	}

	out, err := s.client.SendEmail(ctx, in)
	if err != nil {
		s.log.Error("SES send failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	res := &Result{MessageID: aws.ToString(out.MessageId), Body: data}
	s.log.Info("SES email sent", "message_id", res.MessageID)
	return res, nil
}
