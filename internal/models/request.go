package models

// InitiateRequest is the body of POST /initiate-conversation.
type InitiateRequest struct {
	CompanyData   CompanyRef     `json:"company_data"`
	RecipientData RecipientData  `json:"recipient_data"`
	ProjectData   map[string]any `json:"project_data"`
	RequestData   RequestData    `json:"request_data"`
}
