// Package validation checks inbound requests and queued context objects.
// Each function returns human-readable problems; an empty slice means valid.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func ValidateRequest(req models.InitiateRequest) []string {
	var errs []string
	errs = append(errs, companyErrors(req.CompanyData)...)
	errs = append(errs, requestErrors(req.RequestData, true)...)
	errs = append(errs, recipientErrors(req.RequestData.ChannelMethod, req.RecipientData)...)
	if req.ProjectData == nil {
		errs = append(errs, "project_data must be an object")
	}
	return errs
}

func ValidateContext(c *models.ContextObject) []string {
	if c == nil {
		return []string{"context object is empty"}
	}
	var errs []string
	errs = append(errs, companyErrors(c.Company)...)
	errs = append(errs, requestErrors(c.Request, false)...)
	errs = append(errs, recipientErrors(c.Request.ChannelMethod, c.Recipient)...)
	if strings.TrimSpace(c.Conversation.ConversationID) == "" {
		errs = append(errs, "conversation.conversation_id is required")
	}
	if strings.TrimSpace(c.TenantConfig.AIConfig.APIKeyReference) == "" {
		errs = append(errs, "tenant_config.ai_config.api_key_reference is required")
	}
	if strings.TrimSpace(c.TenantConfig.AIConfig.AssistantIDTemplateSender) == "" {
		errs = append(errs, "tenant_config.ai_config.assistant_id_template_sender is required")
	}
	if models.IsChannel(strings.ToLower(c.Request.ChannelMethod)) {
		cs, ok := c.ChannelSettings()
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("tenant_config.channel_config.%s is required", strings.ToLower(c.Request.ChannelMethod)))
		default:
			if strings.TrimSpace(cs.CredentialsReference) == "" {
				errs = append(errs, "channel credentials_reference is required")
			}
			if strings.TrimSpace(cs.Sender) == "" {
				errs = append(errs, "channel sender is required")
			}
		}
	}
	return errs
}

func companyErrors(c models.CompanyRef) []string {
	var errs []string
	if strings.TrimSpace(c.CompanyID) == "" {
		errs = append(errs, "company_id is required")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		errs = append(errs, "project_id is required")
	}
	return errs
}

func requestErrors(r models.RequestData, strictID bool) []string {
	var errs []string
	switch {
	case strings.TrimSpace(r.RequestID) == "":
		errs = append(errs, "request_id is required")
	case strictID:
		if _, err := uuid.Parse(r.RequestID); err != nil {
			errs = append(errs, "request_id must be a valid UUID")
		}
	}
	if !models.IsChannel(strings.ToLower(r.ChannelMethod)) {
		errs = append(errs, fmt.Sprintf("channel_method must be one of %s", strings.Join(models.Channels, ", ")))
	}
	if ts := strings.TrimSpace(r.InitialRequestTimestamp); ts == "" {
		errs = append(errs, "initial_request_timestamp is required")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		errs = append(errs, "initial_request_timestamp must be an ISO 8601 timestamp")
	}
	return errs
}

func recipientErrors(channel string, r models.RecipientData) []string {
	var errs []string
	switch strings.ToLower(channel) {
	case models.ChannelWhatsApp, models.ChannelSMS:
		if strings.TrimSpace(r.Tel) == "" {
			errs = append(errs, "recipient_tel is required for "+strings.ToLower(channel))
		} else if !e164.MatchString(strings.TrimSpace(r.Tel)) {
			errs = append(errs, "recipient_tel must be in E.164 format")
		}
	case models.ChannelEmail:
		if strings.TrimSpace(r.Email) == "" {
			errs = append(errs, "recipient_email is required for email")
		} else if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
			errs = append(errs, "recipient_email is not a valid address")
		}
	}
	if !r.CommsConsent {
		errs = append(errs, "comms_consent must be true")
	}
	return errs
}
