package common

const (
	EntryStatusUnbilled  = "unbilled"
	EntryStatusDraft     = "draft"
	EntryStatusCommitted = "committed"

	InvoiceStatusDraft     = "draft"
	InvoiceStatusSubmitted = "submitted"

	ItemStatusDraft     = "draft"
	ItemStatusCommitted = "committed"

	MatterStatusOpen = "open"

	ConflictReasonOverlap      = "overlap"
	ConflictReasonDoubleBilled = "double_billed"

	// $250/h, the rate the office bills when nothing else is configured
	DefaultHourlyRateCents = 25000
)
