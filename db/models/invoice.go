package models

import (
	"context"

	"github.com/lawoffice/billinghub/common"
	"github.com/uptrace/bun"
)

// Invoice : Invoice Model
type Invoice struct {
	bun.BaseModel `bun:"table:client_invoices,alias:ci"`

	ID                int64        `json:"id" bun:",pk,autoincrement"`
	InvoiceNumber     string       `json:"invoice_number" bun:",notnull,unique"`
	ClientID          int64        `json:"client_id" bun:",notnull"`
	MatterID          int64        `json:"matter_id" bun:",notnull"`
	Matter            *Matter      `json:"-" bun:"rel:belongs-to,join:matter_id=id"`
	Status            string       `json:"status" bun:",notnull,default:'draft'"`
	TotalHours        float64      `json:"total_hours" bun:",notnull"`
	TotalAmount       int64        `json:"total_amount" bun:",notnull"`
	IsValid           bool         `json:"is_valid" bun:",notnull"`
	LastValidityCheck bun.NullTime `json:"last_validity_check" bun:",nullzero"`
	VersionNumber     int64        `json:"version_number" bun:",notnull"`
	DateSubmitted     bun.NullTime `json:"date_submitted" bun:",nullzero"`
	Timestamps
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	i.Stamp(query, Now())
	return nil
}

func (i *Invoice) Submitted() bool {
	return i.Status == common.InvoiceStatusSubmitted
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
