package models

import (
	"context"
	"time"

	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

// BillingEntry : a block of billed time [Start, Stop) on a matter
type BillingEntry struct {
	bun.BaseModel `bun:"table:billing_entries,alias:be"`

	ID          int64     `json:"id" bun:",pk,autoincrement"`
	MatterID    int64     `json:"matter_id" bun:",notnull"`
	Matter      *Matter   `json:"-" bun:"rel:belongs-to,join:matter_id=id"`
	Category    string    `json:"category" bun:"billing_category,notnull"`
	Start       time.Time `json:"start" bun:"billing_start,notnull"`
	Stop        time.Time `json:"stop" bun:"billing_stop,notnull"`
	Hours       float64   `json:"hours" bun:"billing_hours,notnull"`
	Description string    `json:"description" bun:"billing_description"`
	Status      string    `json:"status" bun:",notnull,default:'unbilled'"`
	Timestamps
}

func (e *BillingEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	e.Stamp(query, Now())
	return nil
}

// Interval returns the entry bounds. Stored rows always satisfy Stop >= Start.
// Drivers may hand back the stored instant in another zone, so the wall clock
// is read in UTC.
func (e *BillingEntry) Interval() interval.Interval {
	return interval.Interval{Start: interval.Naive(e.Start.UTC()), Stop: interval.Naive(e.Stop.UTC())}
}

var _ bun.BeforeAppendModelHook = (*BillingEntry)(nil)
