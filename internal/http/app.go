package httpapi

import (
	"context"
	"time"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

type TenantLookup interface {
	GetTenantConfig(ctx context.Context, companyID, projectID string) (*models.TenantConfig, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, queueURL, body string, attrs map[string]string) (string, error)
}

// App holds the router's dependencies.
type App struct {
	Tenants       TenantLookup
	Queue         Enqueuer
	QueueURLs     map[string]string // by channel method
	RouterVersion string
	Log           *logger.Logger
	Now           func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() *logger.Logger {
	if a.Log != nil {
		return a.Log
	}
	return logger.Nop()
}
