package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

type ValidityReport struct {
	InvoiceID int64      `json:"invoice_id"`
	IsValid   bool       `json:"is_valid"`
	CheckedAt time.Time  `json:"checked_at"`
	Conflicts []Conflict `json:"conflicts"`
}

type InvoiceFilter struct {
	ClientID int64
	MatterID int64
	Status   string
}

type InvoiceDetail struct {
	*models.Invoice
	Items []models.InvoiceBillingItem `json:"items"`
}

func (svc *BillingService) CreateInvoice(ctx context.Context, clientID, matterID int64, invoiceNumber string) (*models.Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, &InvalidArgumentError{Field: "invoice_number", Reason: "must not be blank"}
	}
	matter, err := svc.FindMatter(ctx, matterID)
	if err != nil {
		return nil, err
	}
	if matter.ClientID != clientID {
		return nil, &ClientMismatchError{MatterID: matterID, ClientID: matter.ClientID, Expected: clientID}
	}

	invoice := &models.Invoice{
		InvoiceNumber: invoiceNumber,
		ClientID:      clientID,
		MatterID:      matterID,
		Status:        common.InvoiceStatusDraft,
		IsValid:       true,
		VersionNumber: 1,
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		taken, err := tx.NewSelect().
			Model((*models.Invoice)(nil)).
			Where("invoice_number = ?", invoiceNumber).
			Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return &DuplicateInvoiceNumberError{InvoiceNumber: invoiceNumber}
		}
		_, err = tx.NewInsert().Model(invoice).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// AttachEntryToInvoice adds a billing entry to a draft invoice and recomputes
// the invoice totals from all of its members.
func (svc *BillingService) AttachEntryToInvoice(ctx context.Context, invoiceID, entryID int64) (*models.Invoice, error) {
	current, err := svc.findInvoice(ctx, svc.DB, invoiceID)
	if err != nil {
		return nil, err
	}
	var invoice *models.Invoice
	err = svc.WithMatterLock(ctx, current.MatterID, func(ctx context.Context, tx bun.Tx) error {
		inv, err := svc.findInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != common.InvoiceStatusDraft {
			return &ImmutableInvoiceError{InvoiceID: invoiceID, Status: inv.Status}
		}
		entry, err := svc.FindBillingEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.MatterID != inv.MatterID {
			return &MatterMismatchError{Resource: "billing entry", ID: entryID, MatterID: entry.MatterID, Expected: inv.MatterID}
		}
		attached, err := tx.NewSelect().
			Model((*models.InvoiceBillingItem)(nil)).
			Where("invoice_id = ?", invoiceID).
			Where("billing_id = ?", entryID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if attached {
			return &DuplicateAttachmentError{InvoiceID: invoiceID, EntryID: entryID}
		}
		committedOn, committed, err := CommittingInvoice(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if committed {
			return &AlreadyCommittedError{EntryID: entryID, InvoiceID: committedOn}
		}

		item := &models.InvoiceBillingItem{
			InvoiceID: invoiceID,
			BillingID: entryID,
			Status:    common.ItemStatusDraft,
		}
		if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
		entry.Status = common.EntryStatusDraft
		if _, err := tx.NewUpdate().Model(entry).Column("status", "last_modified").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("failed to update billing entry status: %w", err)
		}
		if err := svc.recomputeTotals(ctx, tx, inv); err != nil {
			return err
		}
		inv.VersionNumber++
		_, err = tx.NewUpdate().
			Model(inv).
			Column("total_hours", "total_amount", "version_number", "last_modified").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update invoice totals: %w", err)
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.Logger.Infof("billing entry attached invoice_id:%v entry_id:%v version:%v", invoiceID, entryID, invoice.VersionNumber)
	return invoice, nil
}

// CheckInvoiceValidity compares every member of the invoice with the entries
// committed by other invoices and stores the outcome on the invoice.
func (svc *BillingService) CheckInvoiceValidity(ctx context.Context, invoiceID int64) (*ValidityReport, error) {
	current, err := svc.findInvoice(ctx, svc.DB, invoiceID)
	if err != nil {
		return nil, err
	}
	var report *ValidityReport
	err = svc.WithMatterLock(ctx, current.MatterID, func(ctx context.Context, tx bun.Tx) error {
		inv, err := svc.findInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		conflicts, err := svc.findConflicts(ctx, tx, inv)
		if err != nil {
			return err
		}
		report = &ValidityReport{
			InvoiceID: invoiceID,
			IsValid:   len(conflicts) == 0,
			CheckedAt: svc.now(),
			Conflicts: conflicts,
		}
		return svc.storeValidity(ctx, tx, inv, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SubmitInvoice commits a draft invoice and all of its members. The conflict
// check is re-run under the matter lock, so a flag cached before a concurrent
// submission is never trusted. On conflicts the fresh flag is stored, the
// invoice stays draft and a ValidationError is returned.
func (svc *BillingService) SubmitInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	current, err := svc.findInvoice(ctx, svc.DB, invoiceID)
	if err != nil {
		return nil, err
	}
	if current.Submitted() {
		return nil, &AlreadySubmittedError{InvoiceID: invoiceID}
	}

	var (
		invoice       *models.Invoice
		entryIDs      []int64
		validationErr *ValidationError
	)
	err = svc.WithMatterLock(ctx, current.MatterID, func(ctx context.Context, tx bun.Tx) error {
		validationErr = nil
		inv, err := svc.findInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Submitted() {
			return &AlreadySubmittedError{InvoiceID: invoiceID}
		}
		conflicts, err := svc.findConflicts(ctx, tx, inv)
		if err != nil {
			return err
		}
		now := svc.now()
		if len(conflicts) > 0 {
			validationErr = &ValidationError{InvoiceID: invoiceID, Conflicts: conflicts}
			return svc.storeValidity(ctx, tx, inv, &ValidityReport{InvoiceID: invoiceID, CheckedAt: now})
		}

		members, err := svc.memberEntries(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		entryIDs = make([]int64, 0, len(members))
		for _, m := range members {
			entryIDs = append(entryIDs, m.ID)
		}

		inv.Status = common.InvoiceStatusSubmitted
		inv.DateSubmitted = bun.NullTime{Time: now}
		inv.IsValid = true
		inv.LastValidityCheck = bun.NullTime{Time: now}
		_, err = tx.NewUpdate().
			Model(inv).
			Column("status", "date_submitted", "is_valid", "last_validity_check", "last_modified").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*models.InvoiceBillingItem)(nil)).
			Set("status = ?", common.ItemStatusCommitted).
			Set("last_modified = ?", now).
			Where("invoice_id = ?", invoiceID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to commit invoice items: %w", err)
		}
		if len(entryIDs) > 0 {
			_, err = tx.NewUpdate().
				Model((*models.BillingEntry)(nil)).
				Set("status = ?", common.EntryStatusCommitted).
				Set("last_modified = ?", now).
				Where("id IN (?)", bun.In(entryIDs)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to commit billing entries: %w", err)
			}
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if validationErr != nil {
		svc.Logger.Warnf("invoice submission rejected invoice_id:%v conflicts:%v", invoiceID, len(validationErr.Conflicts))
		return nil, validationErr
	}

	svc.Logger.Infof("invoice submitted invoice_id:%v invoice_number:%v matter_id:%v entries:%v", invoice.ID, invoice.InvoiceNumber, invoice.MatterID, len(entryIDs))
	if svc.Publisher != nil {
		if err := svc.Publisher.PublishInvoiceSubmitted(ctx, invoice, entryIDs); err != nil {
			svc.Logger.Errorf("failed to publish invoice submission invoice_id:%v error:%v", invoice.ID, err)
		}
	}
	return invoice, nil
}

func (svc *BillingService) GetInvoice(ctx context.Context, invoiceID int64) (*InvoiceDetail, error) {
	invoice, err := svc.findInvoice(ctx, svc.DB, invoiceID)
	if err != nil {
		return nil, err
	}
	items := []models.InvoiceBillingItem{}
	err = svc.DB.NewSelect().
		Model(&items).
		Relation("Entry").
		Where("ibi.invoice_id = ?", invoiceID).
		OrderExpr("ibi.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &InvoiceDetail{Invoice: invoice, Items: items}, nil
}

func (svc *BillingService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	q := svc.DB.NewSelect().Model(&invoices).OrderExpr("ci.id ASC")
	if filter.ClientID != 0 {
		q = q.Where("ci.client_id = ?", filter.ClientID)
	}
	if filter.MatterID != 0 {
		q = q.Where("ci.matter_id = ?", filter.MatterID)
	}
	if filter.Status != "" {
		q = q.Where("ci.status = ?", filter.Status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (svc *BillingService) findInvoice(ctx context.Context, db bun.IDB, invoiceID int64) (*models.Invoice, error) {
	invoice := new(models.Invoice)
	err := db.NewSelect().Model(invoice).Where("id = ?", invoiceID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "invoice", ID: invoiceID}
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (svc *BillingService) memberEntries(ctx context.Context, db bun.IDB, invoiceID int64) ([]models.BillingEntry, error) {
	var entries []models.BillingEntry
	err := db.NewSelect().
		Model(&entries).
		Join("JOIN invoice_billing_items AS ibi ON ibi.billing_id = be.id").
		Where("ibi.invoice_id = ?", invoiceID).
		OrderExpr("be.billing_start ASC, be.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice members: %w", err)
	}
	return entries, nil
}

// findConflicts pairs every member with the committed entries of the matter
// that belong to other invoices, and with the other members of the invoice.
// A member that is itself committed elsewhere is reported as double billed.
// Members overlapping each other are reported once per pair, on the later
// member.
func (svc *BillingService) findConflicts(ctx context.Context, db bun.IDB, invoice *models.Invoice) ([]Conflict, error) {
	members, err := svc.memberEntries(ctx, db, invoice.ID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []Conflict{}, nil
	}
	committed, err := CommittedEntries(ctx, db, invoice.MatterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed entries: %w", err)
	}
	isMember := make(map[int64]bool, len(members))
	for _, m := range members {
		isMember[m.ID] = true
	}

	conflicts := []Conflict{}
	for _, m := range members {
		bounds := m.Interval()
		for _, c := range committed {
			if c.InvoiceID == invoice.ID {
				continue
			}
			switch {
			case c.ID == m.ID:
				conflicts = append(conflicts, Conflict{
					EntryID:              m.ID,
					EntryInterval:        bounds,
					ConflictingEntryID:   c.ID,
					ConflictingInterval:  c.Interval,
					ConflictingInvoiceID: c.InvoiceID,
					Reason:               common.ConflictReasonDoubleBilled,
				})
			case isMember[c.ID]:
				// reported as double billed on its own member row
			case bounds.Overlaps(c.Interval):
				conflicts = append(conflicts, Conflict{
					EntryID:              m.ID,
					EntryInterval:        bounds,
					ConflictingEntryID:   c.ID,
					ConflictingInterval:  c.Interval,
					ConflictingInvoiceID: c.InvoiceID,
					Reason:               common.ConflictReasonOverlap,
				})
			}
		}
	}
	for i := range members {
		earlier := members[i].Interval()
		for j := i + 1; j < len(members); j++ {
			later := members[j].Interval()
			if !later.Overlaps(earlier) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				EntryID:              members[j].ID,
				EntryInterval:        later,
				ConflictingEntryID:   members[i].ID,
				ConflictingInterval:  earlier,
				ConflictingInvoiceID: invoice.ID,
				Reason:               common.ConflictReasonOverlap,
			})
		}
	}
	return conflicts, nil
}

func (svc *BillingService) storeValidity(ctx context.Context, tx bun.IDB, invoice *models.Invoice, report *ValidityReport) error {
	invoice.IsValid = report.IsValid
	invoice.LastValidityCheck = bun.NullTime{Time: report.CheckedAt}
	_, err := tx.NewUpdate().
		Model(invoice).
		Column("is_valid", "last_validity_check", "last_modified").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store invoice validity: %w", err)
	}
	return nil
}

// refreshDraftTotals recomputes the totals of every draft invoice holding the
// entry and bumps their version.
func (svc *BillingService) refreshDraftTotals(ctx context.Context, tx bun.IDB, entryID int64) error {
	var invoices []models.Invoice
	err := tx.NewSelect().
		Model(&invoices).
		Join("JOIN invoice_billing_items AS ibi ON ibi.invoice_id = ci.id").
		Where("ibi.billing_id = ?", entryID).
		Where("ci.status = ?", common.InvoiceStatusDraft).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to load draft invoices of entry: %w", err)
	}
	for i := range invoices {
		inv := &invoices[i]
		if err := svc.recomputeTotals(ctx, tx, inv); err != nil {
			return err
		}
		inv.VersionNumber++
		_, err = tx.NewUpdate().
			Model(inv).
			Column("total_hours", "total_amount", "version_number", "last_modified").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update invoice totals: %w", err)
		}
	}
	return nil
}

func (svc *BillingService) recomputeTotals(ctx context.Context, tx bun.IDB, invoice *models.Invoice) error {
	members, err := svc.memberEntries(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}
	var hours float64
	for _, m := range members {
		hours += m.Hours
	}
	invoice.TotalHours = interval.RoundHours(hours)
	invoice.TotalAmount = int64(math.Round(invoice.TotalHours * float64(svc.hourlyRate())))
	return nil
}
