package models

import "strings"

const ProjectStatusActive = "active"

// TenantConfig is one row of the company-data table, keyed by
// (company_id, project_id).
type TenantConfig struct {
	CompanyID       string        `dynamodbav:"company_id" json:"company_id"`
	ProjectID       string        `dynamodbav:"project_id" json:"project_id"`
	CompanyName     string        `dynamodbav:"company_name" json:"company_name"`
	ProjectName     string        `dynamodbav:"project_name" json:"project_name"`
	ProjectStatus   string        `dynamodbav:"project_status" json:"project_status"`
	AllowedChannels []string      `dynamodbav:"allowed_channels" json:"allowed_channels"`
	AIConfig        AIConfig      `dynamodbav:"ai_config" json:"ai_config"`
	ChannelConfig   ChannelConfig `dynamodbav:"channel_config" json:"channel_config"`
}

type AIConfig struct {
	APIKeyReference           string `dynamodbav:"api_key_reference" json:"api_key_reference"`
	AssistantIDTemplateSender string `dynamodbav:"assistant_id_template_sender" json:"assistant_id_template_sender"`
}

type ChannelConfig struct {
	WhatsApp *ChannelSettings `dynamodbav:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	SMS      *ChannelSettings `dynamodbav:"sms,omitempty" json:"sms,omitempty"`
	Email    *ChannelSettings `dynamodbav:"email,omitempty" json:"email,omitempty"`
}

// ChannelSettings holds the secret reference for the messaging provider and
// the sender address (phone number or email) used on that channel.
type ChannelSettings struct {
	CredentialsReference string `dynamodbav:"credentials_reference" json:"credentials_reference"`
	Sender               string `dynamodbav:"sender" json:"sender"`
}

func (t TenantConfig) Channel(method string) (ChannelSettings, bool) {
	var cs *ChannelSettings
	switch strings.ToLower(method) {
	case ChannelWhatsApp:
		cs = t.ChannelConfig.WhatsApp
	case ChannelSMS:
		cs = t.ChannelConfig.SMS
	case ChannelEmail:
		cs = t.ChannelConfig.Email
	}
	if cs == nil {
		return ChannelSettings{}, false
	}
	return *cs, true
}

func (t TenantConfig) AllowsChannel(method string) bool {
	for _, c := range t.AllowedChannels {
		if strings.EqualFold(c, method) {
			return true
		}
	}
	return false
}

func (t TenantConfig) IsActive() bool {
	return strings.EqualFold(t.ProjectStatus, ProjectStatusActive)
}
