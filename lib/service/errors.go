package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lawoffice/billinghub/lib/interval"
)

// InvalidIntervalError is re-exported so callers only need this package.
type InvalidIntervalError = interval.InvalidIntervalError

// CommittedEntry identifies a committed billing entry and the submitted
// invoice that committed it.
type CommittedEntry struct {
	ID        int64             `json:"id"`
	InvoiceID int64             `json:"invoice_id"`
	Interval  interval.Interval `json:"bounds"`
}

// ConflictError rejects an entry write whose bounds overlap committed time.
type ConflictError struct {
	MatterID  int64
	EntryID   int64 // zero on insert
	Candidate interval.Interval
	Conflicts []CommittedEntry
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("entry %d %s (invoice %d)", c.ID, c.Interval, c.InvoiceID))
	}
	return fmt.Sprintf("time conflict on matter %d: %s overlaps committed %s",
		e.MatterID, e.Candidate, strings.Join(parts, ", "))
}

// Conflict is one member entry of an invoice that cannot be committed. The
// conflicting entry is either committed on another invoice or a member of the
// same invoice.
type Conflict struct {
	EntryID              int64             `json:"entry_id"`
	EntryInterval        interval.Interval `json:"entry_bounds"`
	ConflictingEntryID   int64             `json:"conflicting_entry_id"`
	ConflictingInterval  interval.Interval `json:"conflicting_bounds"`
	ConflictingInvoiceID int64             `json:"conflicting_invoice_id"`
	Reason               string            `json:"reason"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("entry %d %s conflicts with entry %d %s on invoice %d (%s)",
		c.EntryID, c.EntryInterval, c.ConflictingEntryID, c.ConflictingInterval, c.ConflictingInvoiceID, c.Reason)
}

// ValidationError rejects a submission. The invoice stays in draft.
type ValidationError struct {
	InvoiceID int64
	Conflicts []Conflict
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invoice %d has %d unresolved time conflict(s)", e.InvoiceID, len(e.Conflicts))
	for _, c := range e.Conflicts {
		b.WriteString("\n  - ")
		b.WriteString(c.String())
	}
	return b.String()
}

type AlreadySubmittedError struct {
	InvoiceID int64
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("invoice %d is already submitted", e.InvoiceID)
}

type ImmutableInvoiceError struct {
	InvoiceID int64
	Status    string
}

func (e *ImmutableInvoiceError) Error() string {
	return fmt.Sprintf("invoice %d is %s, entries can only be attached to draft invoices", e.InvoiceID, e.Status)
}

type DuplicateAttachmentError struct {
	InvoiceID int64
	EntryID   int64
}

func (e *DuplicateAttachmentError) Error() string {
	return fmt.Sprintf("billing entry %d is already on invoice %d", e.EntryID, e.InvoiceID)
}

// AlreadyCommittedError prevents billing the same entry on a second invoice.
type AlreadyCommittedError struct {
	EntryID   int64
	InvoiceID int64
}

func (e *AlreadyCommittedError) Error() string {
	return fmt.Sprintf("billing entry %d is already committed on submitted invoice %d", e.EntryID, e.InvoiceID)
}

// ImmutableEntryError rejects changing the bounds or hours of a committed entry.
type ImmutableEntryError struct {
	EntryID int64
}

func (e *ImmutableEntryError) Error() string {
	return fmt.Sprintf("billing entry %d is committed, its time bounds and hours can not change", e.EntryID)
}

type MatterMismatchError struct {
	Resource string
	ID       int64
	MatterID int64
	Expected int64
}

func (e *MatterMismatchError) Error() string {
	return fmt.Sprintf("%s %d belongs to matter %d, expected matter %d", e.Resource, e.ID, e.MatterID, e.Expected)
}

// ClientMismatchError rejects an invoice for a matter of another client.
type ClientMismatchError struct {
	MatterID int64
	ClientID int64
	Expected int64
}

func (e *ClientMismatchError) Error() string {
	return fmt.Sprintf("matter %d belongs to client %d, expected client %d", e.MatterID, e.ClientID, e.Expected)
}

type DuplicateInvoiceNumberError struct {
	InvoiceNumber string
}

func (e *DuplicateInvoiceNumberError) Error() string {
	return fmt.Sprintf("invoice number %q is already in use", e.InvoiceNumber)
}

// InvalidArgumentError rejects a request field the service can not work with.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is a NotFoundError for any resource.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
