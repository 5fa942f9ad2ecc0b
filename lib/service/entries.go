package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

type NewBillingEntry struct {
	MatterID    int64
	Category    string
	Start       time.Time
	Stop        time.Time
	Hours       *float64 // overrides the hours derived from the bounds
	Description string
}

// BillingEntryUpdate carries the fields to change; nil fields are kept.
type BillingEntryUpdate struct {
	Start       *time.Time
	Stop        *time.Time
	Category    *string
	Description *string
	Hours       *float64
}

type UnbilledFilter struct {
	ClientID int64
	MatterID int64
}

type UnbilledEntry struct {
	ID          int64     `json:"id" bun:"id"`
	ClientID    int64     `json:"client_id" bun:"client_id"`
	ClientName  string    `json:"client_name" bun:"client_name"`
	MatterID    int64     `json:"matter_id" bun:"matter_id"`
	MatterName  string    `json:"matter_name" bun:"matter_name"`
	Category    string    `json:"category" bun:"billing_category"`
	Start       time.Time `json:"start" bun:"billing_start"`
	Stop        time.Time `json:"stop" bun:"billing_stop"`
	Hours       float64   `json:"hours" bun:"billing_hours"`
	Description string    `json:"description" bun:"billing_description"`
}

func (svc *BillingService) InsertBillingEntry(ctx context.Context, e NewBillingEntry) (*models.BillingEntry, error) {
	iv, err := interval.New(e.Start, e.Stop)
	if err != nil {
		return nil, err
	}
	entry := &models.BillingEntry{
		MatterID:    e.MatterID,
		Category:    e.Category,
		Start:       iv.Start,
		Stop:        iv.Stop,
		Hours:       svc.resolveHours(0, iv, e.Hours),
		Description: e.Description,
		Status:      common.EntryStatusUnbilled,
	}
	err = svc.WithMatterLock(ctx, e.MatterID, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.guardInterval(ctx, tx, e.MatterID, 0, iv); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert billing entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.Logger.Infof("billing entry created entry_id:%v matter_id:%v bounds:%v", entry.ID, entry.MatterID, iv)
	return entry, nil
}

// UpdateBillingEntry applies upd to an entry. New bounds go through the
// overlap guard with the entry itself excluded. The bounds and hours of a
// committed entry can not change at all, and draft invoices holding the entry
// get their totals recomputed when its hours change.
func (svc *BillingService) UpdateBillingEntry(ctx context.Context, entryID int64, upd BillingEntryUpdate) (*models.BillingEntry, error) {
	current, err := svc.FindBillingEntry(ctx, svc.DB, entryID)
	if err != nil {
		return nil, err
	}
	var entry *models.BillingEntry
	err = svc.WithMatterLock(ctx, current.MatterID, func(ctx context.Context, tx bun.Tx) error {
		found, err := svc.FindBillingEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		entry = found
		bounds := entry.Interval()
		start, stop := bounds.Start, bounds.Stop
		if upd.Start != nil {
			start = *upd.Start
		}
		if upd.Stop != nil {
			stop = *upd.Stop
		}
		iv, err := interval.New(start, stop)
		if err != nil {
			return err
		}
		moved := !iv.Start.Equal(bounds.Start) || !iv.Stop.Equal(bounds.Stop)
		hours := entry.Hours
		switch {
		case upd.Hours != nil:
			hours = svc.resolveHours(entryID, iv, upd.Hours)
		case moved:
			hours = iv.Hours()
		}
		rehoured := hours != entry.Hours
		if moved || rehoured {
			committed, err := IsCommitted(ctx, tx, entryID)
			if err != nil {
				return err
			}
			if committed {
				return &ImmutableEntryError{EntryID: entryID}
			}
		}
		if err := svc.guardInterval(ctx, tx, entry.MatterID, entryID, iv); err != nil {
			return err
		}

		entry.Hours = hours
		entry.Start, entry.Stop = iv.Start, iv.Stop
		if upd.Category != nil {
			entry.Category = *upd.Category
		}
		if upd.Description != nil {
			entry.Description = *upd.Description
		}
		_, err = tx.NewUpdate().
			Model(entry).
			Column("billing_category", "billing_start", "billing_stop", "billing_hours", "billing_description", "last_modified").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update billing entry: %w", err)
		}
		if rehoured {
			return svc.refreshDraftTotals(ctx, tx, entryID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (svc *BillingService) FindBillingEntry(ctx context.Context, db bun.IDB, entryID int64) (*models.BillingEntry, error) {
	entry := new(models.BillingEntry)
	err := db.NewSelect().Model(entry).Where("id = ?", entryID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "billing entry", ID: entryID}
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetUnbilledTime lists entries that are on no invoice at all, newest first.
func (svc *BillingService) GetUnbilledTime(ctx context.Context, filter UnbilledFilter) ([]UnbilledEntry, error) {
	entries := []UnbilledEntry{}
	q := svc.DB.NewSelect().
		TableExpr("billing_entries AS be").
		ColumnExpr("be.id, be.matter_id, m.name AS matter_name, m.client_id, c.name AS client_name").
		ColumnExpr("be.billing_category, be.billing_start, be.billing_stop, be.billing_hours, be.billing_description").
		Join("JOIN matters AS m ON m.id = be.matter_id").
		Join("JOIN clients AS c ON c.id = m.client_id").
		Join("LEFT JOIN invoice_billing_items AS ibi ON ibi.billing_id = be.id").
		Where("ibi.id IS NULL").
		OrderExpr("be.billing_start DESC, be.id DESC")
	if filter.ClientID != 0 {
		q = q.Where("m.client_id = ?", filter.ClientID)
	}
	if filter.MatterID != 0 {
		q = q.Where("be.matter_id = ?", filter.MatterID)
	}
	if err := q.Scan(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// resolveHours derives hours from the bounds unless the caller supplied a
// value, which is kept as given.
func (svc *BillingService) resolveHours(entryID int64, iv interval.Interval, override *float64) float64 {
	derived := iv.Hours()
	if override == nil {
		return derived
	}
	hours := interval.RoundHours(*override)
	if hours != derived {
		svc.Logger.Warnf("billing hours differ from entry bounds entry_id:%v bounds:%v derived:%v supplied:%v", entryID, iv, derived, hours)
	}
	return hours
}
