package service

import (
	"context"
	"time"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

// An entry is committed while it is linked to a submitted invoice. There is
// no cached flag: both functions below answer from the item and invoice rows.

// CommittingInvoice returns the submitted invoice that committed the entry.
func CommittingInvoice(ctx context.Context, db bun.IDB, entryID int64) (invoiceID int64, committed bool, err error) {
	var ids []int64
	err = db.NewSelect().
		TableExpr("invoice_billing_items AS ibi").
		ColumnExpr("ibi.invoice_id").
		Join("JOIN client_invoices AS ci ON ci.id = ibi.invoice_id").
		Where("ibi.billing_id = ?", entryID).
		Where("ci.status = ?", common.InvoiceStatusSubmitted).
		OrderExpr("ibi.invoice_id ASC").
		Limit(1).
		Scan(ctx, &ids)
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}
	return ids[0], true, nil
}

func IsCommitted(ctx context.Context, db bun.IDB, entryID int64) (bool, error) {
	_, committed, err := CommittingInvoice(ctx, db, entryID)
	return committed, err
}

type committedRow struct {
	ID        int64     `bun:"id"`
	Start     time.Time `bun:"billing_start"`
	Stop      time.Time `bun:"billing_stop"`
	InvoiceID int64     `bun:"invoice_id"`
}

// CommittedEntries lists the committed entries of a matter ordered by start,
// leaving out excludeIDs.
func CommittedEntries(ctx context.Context, db bun.IDB, matterID int64, excludeIDs ...int64) ([]CommittedEntry, error) {
	var rows []committedRow
	q := db.NewSelect().
		TableExpr("billing_entries AS be").
		ColumnExpr("be.id, be.billing_start, be.billing_stop, ci.id AS invoice_id").
		Join("JOIN invoice_billing_items AS ibi ON ibi.billing_id = be.id").
		Join("JOIN client_invoices AS ci ON ci.id = ibi.invoice_id").
		Where("be.matter_id = ?", matterID).
		Where("ci.status = ?", common.InvoiceStatusSubmitted).
		OrderExpr("be.billing_start ASC, be.id ASC")
	if len(excludeIDs) > 0 {
		q = q.Where("be.id NOT IN (?)", bun.In(excludeIDs))
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	entries := make([]CommittedEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, CommittedEntry{
			ID:        row.ID,
			InvoiceID: row.InvoiceID,
			Interval:  interval.Interval{Start: interval.Naive(row.Start.UTC()), Stop: interval.Naive(row.Stop.UTC())},
		})
	}
	return entries, nil
}
