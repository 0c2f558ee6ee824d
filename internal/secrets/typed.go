package secrets

import (
	"fmt"
	"strings"
)

type AICredentials struct {
	APIKey string
}

type TwilioCredentials struct {
	AccountSID  string
	AuthToken   string
	TemplateSID string
}

type EmailCredentials struct {
	TemplateName     string
	ConfigurationSet string
}

func (c Credentials) require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(c[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ResolveError{Kind: ErrResolution, Err: fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func (c Credentials) AI() (AICredentials, error) {
	if err := c.require("ai_api_key"); err != nil {
		return AICredentials{}, err
	}
	return AICredentials{APIKey: c["ai_api_key"]}, nil
}

func (c Credentials) Twilio() (TwilioCredentials, error) {
	if err := c.require("twilio_account_sid", "twilio_auth_token", "twilio_template_sid"); err != nil {
		return TwilioCredentials{}, err
	}
	return TwilioCredentials{
		AccountSID:  c["twilio_account_sid"],
		AuthToken:   c["twilio_auth_token"],
		TemplateSID: c["twilio_template_sid"],
	}, nil
}

func (c Credentials) Email() (EmailCredentials, error) {
	if err := c.require("email_template_name"); err != nil {
		return EmailCredentials{}, err
	}
	return EmailCredentials{
		TemplateName:     c["email_template_name"],
		ConfigurationSet: c["email_configuration_set"],
	}, nil
}
