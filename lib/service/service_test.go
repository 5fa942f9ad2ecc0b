package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/lawoffice/billinghub/lib/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/ziflex/lecho/v3"
)

type recordingPublisher struct {
	mu       sync.Mutex
	invoices []int64
	entries  [][]int64
	err      error
}

func (p *recordingPublisher) PublishInvoiceSubmitted(ctx context.Context, invoice *models.Invoice, entryIDs []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invoices = append(p.invoices, invoice.ID)
	p.entries = append(p.entries, entryIDs)
	return p.err
}

type BillingServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *service.BillingService
	clientID int64
	matterID int64
	invoices int
}

func (suite *BillingServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	config := &service.Config{
		DatabaseUri:         "sqlite://" + filepath.Join(suite.T().TempDir(), "billing.db"),
		HourlyRateCents:     25000,
		LockRetryMaxElapsed: 1,
	}
	dbConn, err := db.Open(config)
	suite.Require().NoError(err)
	_, err = db.Migrate(suite.ctx, dbConn)
	suite.Require().NoError(err)

	suite.svc = service.NewBillingService(config, dbConn, lecho.New(io.Discard))
	client, err := suite.svc.CreateClient(suite.ctx, "Acme Corp")
	suite.Require().NoError(err)
	matter, err := suite.svc.CreateMatter(suite.ctx, client.ID, "Acme v. Globex")
	suite.Require().NoError(err)
	suite.clientID, suite.matterID = client.ID, matter.ID
	suite.invoices = 0
}

func (suite *BillingServiceTestSuite) TearDownTest() {
	suite.svc.DB.Close()
}

func at(hhmm string) time.Time {
	t, err := interval.Parse("2025-03-10 " + hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func (suite *BillingServiceTestSuite) insertEntry(matterID int64, start, stop string) *models.BillingEntry {
	entry, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: matterID,
		Category: "research",
		Start:    at(start),
		Stop:     at(stop),
	})
	suite.Require().NoError(err)
	return entry
}

func (suite *BillingServiceTestSuite) entry(start, stop string) *models.BillingEntry {
	return suite.insertEntry(suite.matterID, start, stop)
}

func (suite *BillingServiceTestSuite) draftInvoice(entries ...*models.BillingEntry) *models.Invoice {
	suite.invoices++
	invoice, err := suite.svc.CreateInvoice(suite.ctx, suite.clientID, suite.matterID, fmt.Sprintf("INV-%03d", suite.invoices))
	suite.Require().NoError(err)
	for _, e := range entries {
		invoice, err = suite.svc.AttachEntryToInvoice(suite.ctx, invoice.ID, e.ID)
		suite.Require().NoError(err)
	}
	return invoice
}

func (suite *BillingServiceTestSuite) submittedInvoice(entries ...*models.BillingEntry) *models.Invoice {
	invoice := suite.draftInvoice(entries...)
	invoice, err := suite.svc.SubmitInvoice(suite.ctx, invoice.ID)
	suite.Require().NoError(err)
	return invoice
}

func (suite *BillingServiceTestSuite) reloadEntry(id int64) *models.BillingEntry {
	entry, err := suite.svc.FindBillingEntry(suite.ctx, suite.svc.DB, id)
	suite.Require().NoError(err)
	return entry
}

func (suite *BillingServiceTestSuite) reloadInvoice(id int64) *models.Invoice {
	detail, err := suite.svc.GetInvoice(suite.ctx, id)
	suite.Require().NoError(err)
	return detail.Invoice
}

func (suite *BillingServiceTestSuite) TestInsertAgainstCommittedEntry() {
	committed := suite.entry("09:00", "10:00")
	suite.submittedInvoice(committed)

	_, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: suite.matterID,
		Category: "research",
		Start:    at("09:30"),
		Stop:     at("09:45"),
	})
	var conflictErr *service.ConflictError
	suite.Require().ErrorAs(err, &conflictErr)
	suite.Len(conflictErr.Conflicts, 1)
	suite.Equal(committed.ID, conflictErr.Conflicts[0].ID)
	suite.Equal(suite.matterID, conflictErr.MatterID)

	suite.entry("10:00", "10:30")
	suite.entry("08:00", "09:00")

	count, err := suite.svc.DB.NewSelect().Model((*models.BillingEntry)(nil)).Count(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(3, count, "the rejected entry must not be stored")
}

func (suite *BillingServiceTestSuite) TestConflictListsEveryCommittedEntry() {
	first := suite.entry("09:00", "10:00")
	second := suite.entry("10:00", "11:00")
	suite.submittedInvoice(first, second)

	_, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: suite.matterID,
		Category: "drafting",
		Start:    at("09:30"),
		Stop:     at("10:30"),
	})
	var conflictErr *service.ConflictError
	suite.Require().ErrorAs(err, &conflictErr)
	suite.Require().Len(conflictErr.Conflicts, 2)
	suite.Equal(first.ID, conflictErr.Conflicts[0].ID)
	suite.Equal(second.ID, conflictErr.Conflicts[1].ID)
}

func (suite *BillingServiceTestSuite) TestZeroDurationEntryNeverConflicts() {
	suite.submittedInvoice(suite.entry("09:00", "10:00"))

	entry := suite.entry("09:30", "09:30")
	suite.Equal(0.0, entry.Hours)
}

func (suite *BillingServiceTestSuite) TestOtherMattersDoNotConflict() {
	suite.submittedInvoice(suite.entry("09:00", "10:00"))

	other, err := suite.svc.CreateMatter(suite.ctx, suite.clientID, "Acme estate planning")
	suite.Require().NoError(err)
	suite.insertEntry(other.ID, "09:00", "10:00")
}

func (suite *BillingServiceTestSuite) TestInsertRejectsReversedBounds() {
	_, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: suite.matterID,
		Category: "research",
		Start:    at("10:00"),
		Stop:     at("09:00"),
	})
	var invalid *service.InvalidIntervalError
	suite.ErrorAs(err, &invalid)
}

func (suite *BillingServiceTestSuite) TestInsertIntoUnknownMatter() {
	_, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: 999,
		Category: "research",
		Start:    at("09:00"),
		Stop:     at("10:00"),
	})
	suite.True(service.IsNotFound(err))
}

func (suite *BillingServiceTestSuite) TestHoursDerivedUnlessSupplied() {
	derived := suite.entry("09:00", "09:20")
	suite.Equal(0.33, derived.Hours)

	hours := 0.5
	overridden, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: suite.matterID,
		Category: "call",
		Start:    at("11:00"),
		Stop:     at("11:20"),
		Hours:    &hours,
	})
	suite.Require().NoError(err)
	suite.Equal(0.5, suite.reloadEntry(overridden.ID).Hours)
}

func (suite *BillingServiceTestSuite) TestDraftOverlapsAreAllowedUntilCommitted() {
	a := suite.entry("09:00", "10:00")
	b := suite.entry("09:30", "10:30")
	i1 := suite.draftInvoice(a)
	i2 := suite.draftInvoice(b)

	report, err := suite.svc.CheckInvoiceValidity(suite.ctx, i2.ID)
	suite.Require().NoError(err)
	suite.True(report.IsValid)
	suite.Empty(report.Conflicts)

	_, err = suite.svc.SubmitInvoice(suite.ctx, i1.ID)
	suite.Require().NoError(err)

	report, err = suite.svc.CheckInvoiceValidity(suite.ctx, i2.ID)
	suite.Require().NoError(err)
	suite.False(report.IsValid)
	suite.Require().Len(report.Conflicts, 1)
	suite.Equal(b.ID, report.Conflicts[0].EntryID)
	suite.Equal(a.ID, report.Conflicts[0].ConflictingEntryID)
	suite.Equal(i1.ID, report.Conflicts[0].ConflictingInvoiceID)
	suite.Equal(common.ConflictReasonOverlap, report.Conflicts[0].Reason)

	stored := suite.reloadInvoice(i2.ID)
	suite.False(stored.IsValid)
	suite.False(stored.LastValidityCheck.IsZero())
}

func (suite *BillingServiceTestSuite) TestSubmitThenConflictingInvoice() {
	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("14:00", "15:00")
	e3 := suite.entry("09:30", "09:45")
	i1 := suite.draftInvoice(e1, e2)

	report, err := suite.svc.CheckInvoiceValidity(suite.ctx, i1.ID)
	suite.Require().NoError(err)
	suite.True(report.IsValid)

	_, err = suite.svc.SubmitInvoice(suite.ctx, i1.ID)
	suite.Require().NoError(err)
	for _, e := range []*models.BillingEntry{e1, e2} {
		committed, err := service.IsCommitted(suite.ctx, suite.svc.DB, e.ID)
		suite.Require().NoError(err)
		suite.True(committed)
		suite.Equal(common.EntryStatusCommitted, suite.reloadEntry(e.ID).Status)
	}

	i2 := suite.draftInvoice(e3)
	report, err = suite.svc.CheckInvoiceValidity(suite.ctx, i2.ID)
	suite.Require().NoError(err)
	suite.False(report.IsValid)
	suite.Require().Len(report.Conflicts, 1)
	suite.Equal(e1.ID, report.Conflicts[0].ConflictingEntryID)
	suite.Equal(interval.Interval{Start: at("09:00"), Stop: at("10:00")}, report.Conflicts[0].ConflictingInterval)
}

func (suite *BillingServiceTestSuite) TestSubmitCommitsEveryMember() {
	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("10:00", "10:30")
	invoice := suite.submittedInvoice(e1, e2)

	suite.Equal(common.InvoiceStatusSubmitted, invoice.Status)
	suite.False(invoice.DateSubmitted.IsZero())

	detail, err := suite.svc.GetInvoice(suite.ctx, invoice.ID)
	suite.Require().NoError(err)
	suite.Equal(common.InvoiceStatusSubmitted, detail.Status)
	suite.Require().Len(detail.Items, 2)
	for _, item := range detail.Items {
		suite.Equal(common.ItemStatusCommitted, item.Status)
		suite.Require().NotNil(item.Entry)
		suite.Equal(common.EntryStatusCommitted, item.Entry.Status)
	}

	_, err = suite.svc.SubmitInvoice(suite.ctx, invoice.ID)
	var submitted *service.AlreadySubmittedError
	suite.ErrorAs(err, &submitted)
}

func (suite *BillingServiceTestSuite) TestSubmitWithConflictsStaysDraft() {
	e1 := suite.entry("09:00", "10:00")
	e3 := suite.entry("09:30", "09:45")
	suite.submittedInvoice(e1)
	i2 := suite.draftInvoice(e3)

	_, err := suite.svc.SubmitInvoice(suite.ctx, i2.ID)
	var validationErr *service.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.Equal(i2.ID, validationErr.InvoiceID)
	suite.Require().Len(validationErr.Conflicts, 1)
	suite.Equal(e1.ID, validationErr.Conflicts[0].ConflictingEntryID)

	stored := suite.reloadInvoice(i2.ID)
	suite.Equal(common.InvoiceStatusDraft, stored.Status)
	suite.False(stored.IsValid)
	suite.True(stored.DateSubmitted.IsZero())
	suite.Equal(common.EntryStatusDraft, suite.reloadEntry(e3.ID).Status)
	committed, err := service.IsCommitted(suite.ctx, suite.svc.DB, e3.ID)
	suite.Require().NoError(err)
	suite.False(committed)
}

func (suite *BillingServiceTestSuite) TestSubmitDoesNotTrustStaleFlag() {
	a := suite.entry("09:00", "10:00")
	b := suite.entry("09:30", "10:30")
	i1 := suite.draftInvoice(a)
	i2 := suite.draftInvoice(b)

	report, err := suite.svc.CheckInvoiceValidity(suite.ctx, i2.ID)
	suite.Require().NoError(err)
	suite.Require().True(report.IsValid)

	_, err = suite.svc.SubmitInvoice(suite.ctx, i1.ID)
	suite.Require().NoError(err)

	_, err = suite.svc.SubmitInvoice(suite.ctx, i2.ID)
	var validationErr *service.ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *BillingServiceTestSuite) TestStaleInvalidFlagIsRechecked() {
	a := suite.entry("09:00", "10:00")
	invoice := suite.draftInvoice(a)
	_, err := suite.svc.DB.NewUpdate().
		Model((*models.Invoice)(nil)).
		Set("is_valid = ?", false).
		Where("id = ?", invoice.ID).
		Exec(suite.ctx)
	suite.Require().NoError(err)

	submitted, err := suite.svc.SubmitInvoice(suite.ctx, invoice.ID)
	suite.Require().NoError(err)
	suite.True(submitted.IsValid)
}

func (suite *BillingServiceTestSuite) TestConcurrentConflictingSubmissions() {
	a := suite.entry("09:00", "10:00")
	b := suite.entry("09:30", "10:30")
	i1 := suite.draftInvoice(a)
	i2 := suite.draftInvoice(b)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{i1.ID, i2.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = suite.svc.SubmitInvoice(suite.ctx, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var validationErr *service.ValidationError
		suite.ErrorAs(err, &validationErr)
	}
	suite.Equal(1, succeeded)

	committed, err := service.CommittedEntries(suite.ctx, suite.svc.DB, suite.matterID)
	suite.Require().NoError(err)
	suite.Len(committed, 1)
}

func (suite *BillingServiceTestSuite) TestAttachRecomputesTotals() {
	invoice := suite.draftInvoice()
	suite.Equal(int64(1), invoice.VersionNumber)
	suite.Equal(0.0, invoice.TotalHours)
	suite.Equal(int64(0), invoice.TotalAmount)
	suite.True(invoice.IsValid)
	suite.Equal(common.InvoiceStatusDraft, invoice.Status)

	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("10:00", "10:30")
	invoice, err := suite.svc.AttachEntryToInvoice(suite.ctx, invoice.ID, e1.ID)
	suite.Require().NoError(err)
	invoice, err = suite.svc.AttachEntryToInvoice(suite.ctx, invoice.ID, e2.ID)
	suite.Require().NoError(err)

	suite.Equal(1.5, invoice.TotalHours)
	suite.Equal(int64(37500), invoice.TotalAmount)
	suite.Equal(int64(3), invoice.VersionNumber)
	suite.Equal(common.EntryStatusDraft, suite.reloadEntry(e1.ID).Status)

	stored := suite.reloadInvoice(invoice.ID)
	suite.Equal(1.5, stored.TotalHours)
	suite.Equal(int64(3), stored.VersionNumber)
}

func (suite *BillingServiceTestSuite) TestAttachRejections() {
	e1 := suite.entry("09:00", "10:00")
	draft := suite.draftInvoice(e1)

	_, err := suite.svc.AttachEntryToInvoice(suite.ctx, draft.ID, e1.ID)
	var duplicate *service.DuplicateAttachmentError
	suite.ErrorAs(err, &duplicate)

	_, err = suite.svc.AttachEntryToInvoice(suite.ctx, draft.ID, 999)
	suite.True(service.IsNotFound(err))

	_, err = suite.svc.AttachEntryToInvoice(suite.ctx, 999, e1.ID)
	suite.True(service.IsNotFound(err))

	other, err := suite.svc.CreateMatter(suite.ctx, suite.clientID, "Acme estate planning")
	suite.Require().NoError(err)
	foreign := suite.insertEntry(other.ID, "12:00", "13:00")
	_, err = suite.svc.AttachEntryToInvoice(suite.ctx, draft.ID, foreign.ID)
	var mismatch *service.MatterMismatchError
	suite.ErrorAs(err, &mismatch)

	submitted, err := suite.svc.SubmitInvoice(suite.ctx, draft.ID)
	suite.Require().NoError(err)
	e2 := suite.entry("10:00", "11:00")
	_, err = suite.svc.AttachEntryToInvoice(suite.ctx, submitted.ID, e2.ID)
	var immutable *service.ImmutableInvoiceError
	suite.ErrorAs(err, &immutable)

	next := suite.draftInvoice()
	_, err = suite.svc.AttachEntryToInvoice(suite.ctx, next.ID, e1.ID)
	var alreadyCommitted *service.AlreadyCommittedError
	suite.Require().ErrorAs(err, &alreadyCommitted)
	suite.Equal(submitted.ID, alreadyCommitted.InvoiceID)
}

func (suite *BillingServiceTestSuite) TestEntryOnTwoDraftsIsBilledOnce() {
	e1 := suite.entry("09:00", "10:00")
	i1 := suite.draftInvoice(e1)
	i2 := suite.draftInvoice(e1)

	_, err := suite.svc.SubmitInvoice(suite.ctx, i1.ID)
	suite.Require().NoError(err)

	_, err = suite.svc.SubmitInvoice(suite.ctx, i2.ID)
	var validationErr *service.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.Require().Len(validationErr.Conflicts, 1)
	suite.Equal(common.ConflictReasonDoubleBilled, validationErr.Conflicts[0].Reason)
	suite.Equal(i1.ID, validationErr.Conflicts[0].ConflictingInvoiceID)
}

func (suite *BillingServiceTestSuite) TestOverlappingMembersOfOneInvoice() {
	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("09:30", "10:30")
	invoice := suite.draftInvoice(e1, e2)

	report, err := suite.svc.CheckInvoiceValidity(suite.ctx, invoice.ID)
	suite.Require().NoError(err)
	suite.False(report.IsValid)
	suite.Require().Len(report.Conflicts, 1)
	suite.Equal(e2.ID, report.Conflicts[0].EntryID)
	suite.Equal(e1.ID, report.Conflicts[0].ConflictingEntryID)
	suite.Equal(invoice.ID, report.Conflicts[0].ConflictingInvoiceID)
	suite.Equal(common.ConflictReasonOverlap, report.Conflicts[0].Reason)

	_, err = suite.svc.SubmitInvoice(suite.ctx, invoice.ID)
	var validationErr *service.ValidationError
	suite.Require().ErrorAs(err, &validationErr)
	suite.Len(validationErr.Conflicts, 1)

	suite.Equal(common.InvoiceStatusDraft, suite.reloadInvoice(invoice.ID).Status)
	committed, err := service.CommittedEntries(suite.ctx, suite.svc.DB, suite.matterID)
	suite.Require().NoError(err)
	suite.Empty(committed)
}

func (suite *BillingServiceTestSuite) TestAdjacentMembersOfOneInvoiceSubmit() {
	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("10:00", "11:00")
	e3 := suite.entry("10:30", "10:30")
	invoice := suite.submittedInvoice(e1, e2, e3)

	suite.Equal(common.InvoiceStatusSubmitted, invoice.Status)
	committed, err := service.CommittedEntries(suite.ctx, suite.svc.DB, suite.matterID)
	suite.Require().NoError(err)
	suite.Len(committed, 3)
}

func (suite *BillingServiceTestSuite) TestUpdateRefreshesDraftTotals() {
	entry := suite.entry("09:00", "10:00")
	invoice := suite.draftInvoice(entry)
	suite.Equal(int64(2), invoice.VersionNumber)
	suite.Equal(1.0, invoice.TotalHours)

	stop := at("12:00")
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, entry.ID, service.BillingEntryUpdate{Stop: &stop})
	suite.Require().NoError(err)
	stored := suite.reloadInvoice(invoice.ID)
	suite.Equal(3.0, stored.TotalHours)
	suite.Equal(int64(75000), stored.TotalAmount)
	suite.Equal(int64(3), stored.VersionNumber)

	hours := 2.5
	_, err = suite.svc.UpdateBillingEntry(suite.ctx, entry.ID, service.BillingEntryUpdate{Hours: &hours})
	suite.Require().NoError(err)
	stored = suite.reloadInvoice(invoice.ID)
	suite.Equal(2.5, stored.TotalHours)
	suite.Equal(int64(62500), stored.TotalAmount)
	suite.Equal(int64(4), stored.VersionNumber)

	description := "Drafted motion"
	_, err = suite.svc.UpdateBillingEntry(suite.ctx, entry.ID, service.BillingEntryUpdate{Description: &description})
	suite.Require().NoError(err)
	suite.Equal(int64(4), suite.reloadInvoice(invoice.ID).VersionNumber)
}

func (suite *BillingServiceTestSuite) TestUpdateCommittedHoursRejected() {
	committed := suite.entry("09:00", "10:00")
	invoice := suite.submittedInvoice(committed)

	hours := 2.0
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, committed.ID, service.BillingEntryUpdate{Hours: &hours})
	var immutable *service.ImmutableEntryError
	suite.Require().ErrorAs(err, &immutable)

	suite.Equal(1.0, suite.reloadEntry(committed.ID).Hours)
	suite.Equal(1.0, suite.reloadInvoice(invoice.ID).TotalHours)

	same := 1.0
	_, err = suite.svc.UpdateBillingEntry(suite.ctx, committed.ID, service.BillingEntryUpdate{Hours: &same})
	suite.NoError(err)
}

func (suite *BillingServiceTestSuite) TestBlankNamesAreRejected() {
	var invalid *service.InvalidArgumentError

	_, err := suite.svc.CreateInvoice(suite.ctx, suite.clientID, suite.matterID, "   ")
	suite.ErrorAs(err, &invalid)
	_, err = suite.svc.CreateClient(suite.ctx, "")
	suite.ErrorAs(err, &invalid)
	_, err = suite.svc.CreateMatter(suite.ctx, suite.clientID, " ")
	suite.ErrorAs(err, &invalid)
}

func (suite *BillingServiceTestSuite) TestCommittedItemIsUniquePerEntry() {
	e1 := suite.entry("09:00", "10:00")
	i1 := suite.submittedInvoice(e1)
	i2 := suite.draftInvoice()

	_, err := suite.svc.DB.NewInsert().Model(&models.InvoiceBillingItem{
		InvoiceID: i2.ID,
		BillingID: e1.ID,
		Status:    common.ItemStatusCommitted,
	}).Exec(suite.ctx)
	suite.Error(err, "a second committed item for entry %d (invoice %d) must be refused", e1.ID, i1.ID)
}

func (suite *BillingServiceTestSuite) TestUpdateDraftEntry() {
	suite.submittedInvoice(suite.entry("09:00", "10:00"))
	draft := suite.entry("11:00", "12:00")

	start := at("09:30")
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, draft.ID, service.BillingEntryUpdate{Start: &start})
	var conflictErr *service.ConflictError
	suite.Require().ErrorAs(err, &conflictErr)
	suite.Equal(draft.ID, conflictErr.EntryID)
	suite.True(suite.reloadEntry(draft.ID).Start.Equal(at("11:00")), "rejected update must not be stored")

	start = at("10:00")
	updated, err := suite.svc.UpdateBillingEntry(suite.ctx, draft.ID, service.BillingEntryUpdate{Start: &start})
	suite.Require().NoError(err)
	suite.Equal(2.0, updated.Hours)
	suite.True(suite.reloadEntry(draft.ID).Start.Equal(at("10:00")))

	stop := at("09:00")
	_, err = suite.svc.UpdateBillingEntry(suite.ctx, draft.ID, service.BillingEntryUpdate{Stop: &stop})
	var invalid *service.InvalidIntervalError
	suite.ErrorAs(err, &invalid)
}

func (suite *BillingServiceTestSuite) TestUpdateCommittedEntry() {
	committed := suite.entry("09:00", "10:00")
	suite.submittedInvoice(committed)

	stop := at("10:30")
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, committed.ID, service.BillingEntryUpdate{Stop: &stop})
	var immutable *service.ImmutableEntryError
	suite.ErrorAs(err, &immutable)

	description := "Reviewed discovery production"
	sameStart := at("09:00")
	updated, err := suite.svc.UpdateBillingEntry(suite.ctx, committed.ID, service.BillingEntryUpdate{
		Start:       &sameStart,
		Description: &description,
	})
	suite.Require().NoError(err)
	suite.Equal(description, updated.Description)
	suite.Equal(1.0, updated.Hours)
}

func (suite *BillingServiceTestSuite) TestUpdateUnknownEntry() {
	category := "call"
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, 999, service.BillingEntryUpdate{Category: &category})
	suite.True(service.IsNotFound(err))
}

func (suite *BillingServiceTestSuite) TestUnbilledTime() {
	early := suite.entry("08:00", "09:00")
	late := suite.entry("15:00", "16:00")
	attached := suite.entry("11:00", "12:00")
	suite.draftInvoice(attached)

	other, err := suite.svc.CreateMatter(suite.ctx, suite.clientID, "Acme estate planning")
	suite.Require().NoError(err)
	elsewhere := suite.insertEntry(other.ID, "10:00", "11:00")

	entries, err := suite.svc.GetUnbilledTime(suite.ctx, service.UnbilledFilter{})
	suite.Require().NoError(err)
	ids := []int64{}
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	suite.Equal([]int64{late.ID, elsewhere.ID, early.ID}, ids)
	suite.Equal("Acme Corp", entries[0].ClientName)
	suite.Equal("Acme v. Globex", entries[0].MatterName)

	entries, err = suite.svc.GetUnbilledTime(suite.ctx, service.UnbilledFilter{MatterID: other.ID})
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Equal(elsewhere.ID, entries[0].ID)

	entries, err = suite.svc.GetUnbilledTime(suite.ctx, service.UnbilledFilter{ClientID: suite.clientID + 1})
	suite.Require().NoError(err)
	suite.Empty(entries)
}

func (suite *BillingServiceTestSuite) TestTimestampsFollowWrites() {
	original := models.Now
	defer func() { models.Now = original }()

	models.Now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	entry := suite.entry("09:00", "10:00")
	stored := suite.reloadEntry(entry.ID)
	suite.True(stored.Created.Equal(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)))
	suite.True(stored.LastModified.Equal(stored.Created))

	models.Now = func() time.Time { return time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC) }
	description := "Call with opposing counsel"
	_, err := suite.svc.UpdateBillingEntry(suite.ctx, entry.ID, service.BillingEntryUpdate{Description: &description})
	suite.Require().NoError(err)
	stored = suite.reloadEntry(entry.ID)
	suite.True(stored.Created.Equal(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)))
	suite.True(stored.LastModified.Equal(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)))
}

func (suite *BillingServiceTestSuite) TestCreateInvoiceRules() {
	_, err := suite.svc.CreateInvoice(suite.ctx, suite.clientID, suite.matterID, "A-1")
	suite.Require().NoError(err)

	_, err = suite.svc.CreateInvoice(suite.ctx, suite.clientID, suite.matterID, "A-1")
	var duplicate *service.DuplicateInvoiceNumberError
	suite.ErrorAs(err, &duplicate)

	otherClient, err := suite.svc.CreateClient(suite.ctx, "Globex")
	suite.Require().NoError(err)
	_, err = suite.svc.CreateInvoice(suite.ctx, otherClient.ID, suite.matterID, "A-2")
	var mismatch *service.ClientMismatchError
	suite.ErrorAs(err, &mismatch)

	_, err = suite.svc.CreateInvoice(suite.ctx, suite.clientID, 999, "A-3")
	suite.True(service.IsNotFound(err))
}

func (suite *BillingServiceTestSuite) TestListInvoices() {
	draft := suite.draftInvoice()
	submitted := suite.submittedInvoice(suite.entry("09:00", "10:00"))

	all, err := suite.svc.ListInvoices(suite.ctx, service.InvoiceFilter{MatterID: suite.matterID})
	suite.Require().NoError(err)
	suite.Len(all, 2)

	drafts, err := suite.svc.ListInvoices(suite.ctx, service.InvoiceFilter{Status: common.InvoiceStatusDraft})
	suite.Require().NoError(err)
	suite.Require().Len(drafts, 1)
	suite.Equal(draft.ID, drafts[0].ID)

	done, err := suite.svc.ListInvoices(suite.ctx, service.InvoiceFilter{ClientID: suite.clientID, Status: common.InvoiceStatusSubmitted})
	suite.Require().NoError(err)
	suite.Require().Len(done, 1)
	suite.Equal(submitted.ID, done[0].ID)
}

func (suite *BillingServiceTestSuite) TestPublishesAfterSubmit() {
	publisher := &recordingPublisher{}
	suite.svc.Publisher = publisher
	e1 := suite.entry("09:00", "10:00")
	invoice := suite.submittedInvoice(e1)

	suite.Equal([]int64{invoice.ID}, publisher.invoices)
	suite.Equal([][]int64{{e1.ID}}, publisher.entries)

	publisher.err = errors.New("broker down")
	second := suite.submittedInvoice(suite.entry("10:00", "11:00"))
	suite.Equal(common.InvoiceStatusSubmitted, suite.reloadInvoice(second.ID).Status)
}

func (suite *BillingServiceTestSuite) TestRejectedSubmitDoesNotPublish() {
	publisher := &recordingPublisher{}
	e1 := suite.entry("09:00", "10:00")
	e2 := suite.entry("09:30", "10:30")
	suite.submittedInvoice(e1)
	i2 := suite.draftInvoice(e2)

	suite.svc.Publisher = publisher
	_, err := suite.svc.SubmitInvoice(suite.ctx, i2.ID)
	suite.Error(err)
	suite.Empty(publisher.invoices)
}

func (suite *BillingServiceTestSuite) TestMatterBillingSummary() {
	suite.submittedInvoice(suite.entry("09:00", "10:00"))
	suite.entry("10:00", "10:30")
	hours := 2.0
	_, err := suite.svc.InsertBillingEntry(suite.ctx, service.NewBillingEntry{
		MatterID: suite.matterID,
		Category: "court",
		Start:    at("13:00"),
		Stop:     at("14:00"),
		Hours:    &hours,
	})
	suite.Require().NoError(err)

	summary, err := suite.svc.MatterBillingSummary(suite.ctx, suite.matterID)
	suite.Require().NoError(err)
	suite.Equal(suite.matterID, summary.MatterID)
	suite.Equal(3.5, summary.TotalHours)
	suite.Equal(1.0, summary.BilledHours)
	suite.Equal([]service.CategorySummary{
		{Category: "court", Entries: 1, Hours: 2, BilledHours: 0},
		{Category: "research", Entries: 2, Hours: 1.5, BilledHours: 1},
	}, summary.Categories)
}

func TestBillingServiceSuite(t *testing.T) {
	suite.Run(t, new(BillingServiceTestSuite))
}

func TestOverlapping(t *testing.T) {
	committed := []service.CommittedEntry{
		{ID: 1, InvoiceID: 10, Interval: interval.Interval{Start: at("09:00"), Stop: at("10:00")}},
		{ID: 2, InvoiceID: 10, Interval: interval.Interval{Start: at("10:00"), Stop: at("11:00")}},
	}
	candidate, err := interval.New(at("09:59"), at("10:01"))
	require.NoError(t, err)
	assert.Len(t, service.Overlapping(candidate, committed), 2)

	candidate, err = interval.New(at("11:00"), at("12:00"))
	require.NoError(t, err)
	assert.Empty(t, service.Overlapping(candidate, committed))
}
