// Package config reads process configuration from the environment. A local
// .env file is loaded first when present.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

const defaultRegion = "eu-north-1"

// Common holds settings every binary needs.
type Common struct {
	AWSRegion      string
	DynamoEndpoint string
	LogMode        string
	LogLevel       string
	LogHashSalt    string
	KafkaBrokers   []string
	KafkaTopic     string
}

type RouterConfig struct {
	Common
	HTTPAddr         string
	CompanyDataTable string
	RouterVersion    string
	QueueURLs        map[string]string // by channel method
	AllowedOrigins   []string
}

type ProcessorConfig struct {
	Common
	ConversationsTable string
	QueueURL           string
	HeartbeatInterval  time.Duration
	VisibilityExtend   time.Duration
	AIPollInterval     time.Duration
	AITimeout          time.Duration
	OpenAIBaseURL      string
}

// Load reads .env if present. A missing file is not an error.
func Load() {
	_ = godotenv.Load()
}

func loadCommon() Common {
	return Common{
		AWSRegion:      getenv("AWS_REGION", defaultRegion),
		DynamoEndpoint: getenv("DYNAMODB_ENDPOINT", ""),
		LogMode:        getenv("LOG_MODE", "dev"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogHashSalt:    getenv("LOG_HASH_SALT", ""),
		KafkaBrokers:   splitCSV(getenv("KAFKA_BROKERS", "")),
		KafkaTopic:     getenv("KAFKA_TOPIC_EVENTS", "conversation-events"),
	}
}

func LoadRouter() RouterConfig {
	return RouterConfig{
		Common:           loadCommon(),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		CompanyDataTable: getenv("COMPANY_DATA_TABLE", ""),
		RouterVersion:    getenv("ROUTER_VERSION", "router-go-1.0.0"),
		QueueURLs: map[string]string{
			models.ChannelWhatsApp: getenv("WHATSAPP_QUEUE_URL", ""),
			models.ChannelSMS:      getenv("SMS_QUEUE_URL", ""),
			models.ChannelEmail:    getenv("EMAIL_QUEUE_URL", ""),
		},
		AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "*")),
	}
}

func LoadProcessor() ProcessorConfig {
	return ProcessorConfig{
		Common:             loadCommon(),
		ConversationsTable: getenv("CONVERSATIONS_TABLE", ""),
		QueueURL:           getenv("QUEUE_URL", ""),
		HeartbeatInterval:  envSeconds("HEARTBEAT_INTERVAL_SECONDS", 5*time.Minute),
		VisibilityExtend:   envSeconds("VISIBILITY_EXTEND_SECONDS", 10*time.Minute),
		AIPollInterval:     envMillis("AI_POLL_INTERVAL_MS", time.Second),
		AITimeout:          envSeconds("AI_TIMEOUT_SECONDS", 9*time.Minute),
		OpenAIBaseURL:      getenv("OPENAI_BASE_URL", ""),
	}
}

func (c RouterConfig) Validate() error {
	var errs []error
	if c.CompanyDataTable == "" {
		errs = append(errs, errors.New("COMPANY_DATA_TABLE is required"))
	}
	configured := 0
	for _, u := range c.QueueURLs {
		if u != "" {
			configured++
		}
	}
	if configured == 0 {
		errs = append(errs, errors.New("at least one channel queue url is required"))
	}
	return errors.Join(errs...)
}

func (c ProcessorConfig) Validate() error {
	var errs []error
	if c.ConversationsTable == "" {
		errs = append(errs, errors.New("CONVERSATIONS_TABLE is required"))
	}
	if c.QueueURL == "" {
		errs = append(errs, errors.New("QUEUE_URL is required"))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("HEARTBEAT_INTERVAL_SECONDS must be positive"))
	}
	if c.VisibilityExtend <= c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("VISIBILITY_EXTEND_SECONDS (%s) must exceed the heartbeat interval (%s)", c.VisibilityExtend, c.HeartbeatInterval))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger from LOG_MODE and LOG_LEVEL.
func (c Common) Logger() (*logger.Logger, error) {
	return logger.New(logger.Options{Mode: c.LogMode, Level: c.LogLevel, Redact: true, HashSalt: c.LogHashSalt})
}

// LoadAWSConfig resolves credentials through the default chain.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
