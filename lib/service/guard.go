package service

import (
	"context"
	"fmt"

	"github.com/lawoffice/billinghub/lib/interval"
	"github.com/uptrace/bun"
)

// Overlapping returns the committed entries whose bounds overlap candidate.
func Overlapping(candidate interval.Interval, committed []CommittedEntry) []CommittedEntry {
	var hits []CommittedEntry
	for _, c := range committed {
		if candidate.Overlaps(c.Interval) {
			hits = append(hits, c)
		}
	}
	return hits
}

// guardInterval rejects candidate bounds for an entry of the matter when they
// overlap any other committed entry. entryID is zero for entries that are not
// stored yet. It must run in the transaction that persists the write.
func (svc *BillingService) guardInterval(ctx context.Context, tx bun.IDB, matterID, entryID int64, candidate interval.Interval) error {
	var exclude []int64
	if entryID != 0 {
		exclude = append(exclude, entryID)
	}
	committed, err := CommittedEntries(ctx, tx, matterID, exclude...)
	if err != nil {
		return fmt.Errorf("failed to load committed entries: %w", err)
	}
	hits := Overlapping(candidate, committed)
	if len(hits) == 0 {
		return nil
	}
	svc.Logger.Warnf("rejected overlapping billing entry matter_id:%v entry_id:%v bounds:%v conflicts:%v", matterID, entryID, candidate, len(hits))
	return &ConflictError{
		MatterID:  matterID,
		EntryID:   entryID,
		Candidate: candidate,
		Conflicts: hits,
	}
}
