package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

func TestEnvInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	assert.Equal(t, 42, envInt("CFG_TEST_INT", 7))

	t.Setenv("CFG_TEST_INT", "forty")
	assert.Equal(t, 7, envInt("CFG_TEST_INT", 7))

	t.Setenv("CFG_TEST_INT", "")
	assert.Equal(t, 7, envInt("CFG_TEST_INT", 7))
}

func TestLoadProcessor_Defaults(t *testing.T) {
	for _, k := range []string{"HEARTBEAT_INTERVAL_SECONDS", "VISIBILITY_EXTEND_SECONDS", "AI_POLL_INTERVAL_MS", "AI_TIMEOUT_SECONDS", "AWS_REGION"} {
		t.Setenv(k, "")
	}
	t.Setenv("CONVERSATIONS_TABLE", "conversations-test")
	t.Setenv("QUEUE_URL", "https://sqs.test/whatsapp")

	cfg := LoadProcessor()
	assert.Equal(t, 5*time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Minute, cfg.VisibilityExtend)
	assert.Equal(t, time.Second, cfg.AIPollInterval)
	assert.Equal(t, 9*time.Minute, cfg.AITimeout)
	assert.Equal(t, defaultRegion, cfg.AWSRegion)
	require.NoError(t, cfg.Validate())
}

func TestLoadProcessor_Overrides(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "30")
	t.Setenv("VISIBILITY_EXTEND_SECONDS", "90")
	t.Setenv("AI_POLL_INTERVAL_MS", "250")

	cfg := LoadProcessor()
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 90*time.Second, cfg.VisibilityExtend)
	assert.Equal(t, 250*time.Millisecond, cfg.AIPollInterval)
}

func TestProcessorConfig_Validate(t *testing.T) {
	cfg := ProcessorConfig{HeartbeatInterval: time.Minute, VisibilityExtend: time.Minute, AITimeout: time.Minute}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONVERSATIONS_TABLE")
	assert.Contains(t, err.Error(), "QUEUE_URL")
	assert.Contains(t, err.Error(), "VISIBILITY_EXTEND_SECONDS")
}

func TestLoadRouter(t *testing.T) {
	t.Setenv("COMPANY_DATA_TABLE", "company-data")
	t.Setenv("WHATSAPP_QUEUE_URL", "https://sqs.test/whatsapp")
	t.Setenv("SMS_QUEUE_URL", "")
	t.Setenv("EMAIL_QUEUE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg := LoadRouter()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://sqs.test/whatsapp", cfg.QueueURLs[models.ChannelWhatsApp])
	assert.Empty(t, cfg.QueueURLs[models.ChannelSMS])
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
}

func TestRouterConfig_ValidateNeedsAQueue(t *testing.T) {
	cfg := RouterConfig{CompanyDataTable: "t", QueueURLs: map[string]string{models.ChannelSMS: ""}}
	assert.Error(t, cfg.Validate())
}

func TestLoadCommon_KafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, loadCommon().KafkaBrokers)

	t.Setenv("KAFKA_BROKERS", "")
	assert.Empty(t, loadCommon().KafkaBrokers)
}
