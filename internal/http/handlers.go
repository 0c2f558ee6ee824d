package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/junksamiad/template-sender-engine-sub000/internal/metrics"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
	"github.com/junksamiad/template-sender-engine-sub000/internal/queue"
	"github.com/junksamiad/template-sender-engine-sub000/internal/validation"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeCompanyNotFound   = "COMPANY_NOT_FOUND"
	CodeProjectInactive   = "PROJECT_INACTIVE"
	CodeChannelNotAllowed = "CHANNEL_NOT_ALLOWED"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeQueueError        = "QUEUE_ERROR"
)

// maxBodyBytes caps the request body.
const maxBodyBytes = 1 << 20

type InitiateResponse struct {
	Status         string `json:"status"`
	RequestID      string `json:"request_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type ErrorResponse struct {
	Status    string   `json:"status"`
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	Details   []string `json:"details,omitempty"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) fail(w http.ResponseWriter, channel string, status int, code, msg, requestID string, details ...string) {
	metrics.RouterRequestsTotal.WithLabelValues(channelLabel(channel), strconv.Itoa(status)).Inc()
	writeJSON(w, status, ErrorResponse{
		Status:    "error",
		ErrorCode: code,
		Message:   msg,
		RequestID: requestID,
		Details:   details,
	})
}

func (a *App) initiateConversation(w http.ResponseWriter, r *http.Request) {
	log := a.logger()

	var req models.InitiateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.fail(w, "", http.StatusBadRequest, CodeInvalidRequest, "invalid JSON", "")
		return
	}
	channel := strings.ToLower(strings.TrimSpace(req.RequestData.ChannelMethod))
	requestID := req.RequestData.RequestID
	log = log.With("request_id", requestID, "channel_method", channel)

	if errs := validation.ValidateRequest(req); len(errs) > 0 {
		log.Info("Rejected invalid request", "problems", len(errs))
		a.fail(w, channel, http.StatusBadRequest, CodeInvalidRequest, "request validation failed", requestID, errs...)
		return
	}

	tenant, err := a.Tenants.GetTenantConfig(r.Context(), req.CompanyData.CompanyID, req.CompanyData.ProjectID)
	if err != nil {
		log.Error("Tenant lookup failed", "error", err)
		a.fail(w, channel, http.StatusInternalServerError, CodeDatabaseError, "failed to load company configuration", requestID)
		return
	}
	if tenant == nil {
		a.fail(w, channel, http.StatusNotFound, CodeCompanyNotFound, "company/project not found", requestID)
		return
	}
	if !tenant.IsActive() {
		a.fail(w, channel, http.StatusForbidden, CodeProjectInactive, "project is not active", requestID)
		return
	}
	if !tenant.AllowsChannel(channel) {
		a.fail(w, channel, http.StatusForbidden, CodeChannelNotAllowed, "channel "+channel+" is not allowed for this project", requestID)
		return
	}
	if _, ok := tenant.Channel(channel); !ok {
		a.fail(w, channel, http.StatusForbidden, CodeChannelNotAllowed, "channel "+channel+" is not configured for this project", requestID)
		return
	}

	queueURL := a.QueueURLs[channel]
	if queueURL == "" {
		log.Error("No queue configured for channel")
		a.fail(w, channel, http.StatusInternalServerError, CodeQueueError, "no queue configured for channel", requestID)
		return
	}

	ctxObj := a.buildContext(req, *tenant, channel)
	body, err := json.Marshal(ctxObj)
	if err != nil {
		a.fail(w, channel, http.StatusInternalServerError, CodeQueueError, "failed to encode context", requestID)
		return
	}

	msgID, err := a.Queue.Enqueue(r.Context(), queueURL, string(body), map[string]string{
		queue.AttrConversationID: ctxObj.Conversation.ConversationID,
		queue.AttrChannelMethod:  channel,
		queue.AttrCompanyID:      req.CompanyData.CompanyID,
	})
	if err != nil {
		log.Error("Enqueue failed", "error", err)
		a.fail(w, channel, http.StatusInternalServerError, CodeQueueError, "failed to queue message", requestID)
		return
	}

	log.Info("Conversation queued", "conversation_id", ctxObj.Conversation.ConversationID, "sqs_message_id", msgID)
	metrics.RouterRequestsTotal.WithLabelValues(channel, strconv.Itoa(http.StatusOK)).Inc()
	writeJSON(w, http.StatusOK, InitiateResponse{
		Status:         "success",
		RequestID:      requestID,
		ConversationID: ctxObj.Conversation.ConversationID,
		Message:        "Request accepted and queued for processing",
	})
}

func (a *App) buildContext(req models.InitiateRequest, tenant models.TenantConfig, channel string) models.ContextObject {
	reqData := req.RequestData
	reqData.ChannelMethod = channel
	return models.ContextObject{
		Metadata: models.ContextMetadata{
			RouterVersion:            a.RouterVersion,
			ContextCreationTimestamp: a.now().UTC().Format(time.RFC3339),
		},
		Request:      reqData,
		Recipient:    req.RecipientData,
		Company:      req.CompanyData,
		ProjectData:  req.ProjectData,
		TenantConfig: tenant,
		Conversation: models.ConversationRef{
			ConversationID: ConversationID(req.CompanyData.CompanyID, req.CompanyData.ProjectID, req.RequestData.RequestID, channel),
		},
	}
}

// ConversationID is derived from the request so a repeated producer call maps
// to the same conversation.
func ConversationID(companyID, projectID, requestID, channel string) string {
	name := strings.Join([]string{companyID, projectID, requestID, channel}, "#")
	return companyID + "#" + projectID + "#" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func channelLabel(channel string) string {
	if models.IsChannel(channel) {
		return channel
	}
	return "unknown"
}
