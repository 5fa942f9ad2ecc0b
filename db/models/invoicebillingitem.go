package models

import (
	"context"

	"github.com/uptrace/bun"
)

// InvoiceBillingItem : links a billing entry to an invoice. Rows are kept as
// an audit trail once the invoice is submitted.
type InvoiceBillingItem struct {
	bun.BaseModel `bun:"table:invoice_billing_items,alias:ibi"`

	ID        int64         `json:"id" bun:",pk,autoincrement"`
	InvoiceID int64         `json:"invoice_id" bun:",notnull"`
	Invoice   *Invoice      `json:"-" bun:"rel:belongs-to,join:invoice_id=id"`
	BillingID int64         `json:"billing_id" bun:",notnull"`
	Entry     *BillingEntry `json:"entry,omitempty" bun:"rel:belongs-to,join:billing_id=id"`
	Status    string        `json:"status" bun:",notnull,default:'draft'"`
	Timestamps
}

func (ibi *InvoiceBillingItem) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	ibi.Stamp(query, Now())
	return nil
}

var _ bun.BeforeAppendModelHook = (*InvoiceBillingItem)(nil)
