package models

import (
	"time"

	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

// Now is the clock used for created/last_modified stamps.
var Now = func() time.Time {
	return interval.Naive(time.Now())
}

// Timestamps is embedded by every table that tracks row creation and
// modification. The owning model calls Stamp from its BeforeAppendModel hook
// so the stamps are written by the same statement as the change itself.
type Timestamps struct {
	Created      time.Time `json:"created" bun:"created,nullzero,notnull,default:current_timestamp"`
	LastModified time.Time `json:"last_modified" bun:"last_modified,nullzero,notnull,default:current_timestamp"`
}

// Stamp sets Created once, on first insert, unless it was supplied, and
// refreshes LastModified on every update.
func (ts *Timestamps) Stamp(query bun.Query, now time.Time) {
	switch query.(type) {
	case *bun.InsertQuery:
		if ts.Created.IsZero() {
			ts.Created = now
		}
		if ts.LastModified.IsZero() {
			ts.LastModified = now
		}
	case *bun.UpdateQuery:
		ts.LastModified = now
	}
}
