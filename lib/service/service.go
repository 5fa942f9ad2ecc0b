package service

import (
	"context"
	"time"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

// InvoicePublisher is notified after an invoice submission has been committed.
type InvoicePublisher interface {
	PublishInvoiceSubmitted(ctx context.Context, invoice *models.Invoice, entryIDs []int64) error
}

type BillingService struct {
	Config    *Config
	DB        *bun.DB
	Logger    *lecho.Logger
	Publisher InvoicePublisher

	locks matterLocks
}

func (svc *BillingService) now() time.Time {
	return models.Now()
}

func (svc *BillingService) hourlyRate() int64 {
	if svc.Config == nil || svc.Config.HourlyRateCents <= 0 {
		return common.DefaultHourlyRateCents
	}
	return svc.Config.HourlyRateCents
}

func (svc *BillingService) lockRetryMaxElapsed() time.Duration {
	if svc.Config == nil || svc.Config.LockRetryMaxElapsed <= 0 {
		return 5 * time.Second
	}
	return time.Duration(svc.Config.LockRetryMaxElapsed) * time.Second
}

func NewBillingService(config *Config, db *bun.DB, logger *lecho.Logger) *BillingService {
	return &BillingService{
		Config: config,
		DB:     db,
		Logger: logger,
	}
}
