package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
)

// matterLocks serializes writers per matter inside this process. The
// committed intervals of a matter are the contended resource, so the key is
// the matter and never an individual entry.
type matterLocks struct {
	mu    sync.Mutex
	locks map[int64]*matterLock
}

type matterLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until the matter is free and returns the matching unlock.
func (l *matterLocks) Lock(matterID int64) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[int64]*matterLock{}
	}
	ml, ok := l.locks[matterID]
	if !ok {
		ml = &matterLock{}
		l.locks[matterID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.Lock()
	return func() {
		ml.Unlock()
		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, matterID)
		}
		l.mu.Unlock()
	}
}

// WithMatterLock runs fn in a transaction that holds the matter lock for its
// whole duration. On Postgres the matter row is locked as well, so writers in
// other processes are serialized too. Lock conflicts are retried, every other
// error returned by fn aborts immediately.
func (svc *BillingService) WithMatterLock(ctx context.Context, matterID int64, fn func(ctx context.Context, tx bun.Tx) error) error {
	unlock := svc.locks.Lock(matterID)
	defer unlock()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = svc.lockRetryMaxElapsed()

	return backoff.Retry(func() error {
		err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if err := lockMatterRow(ctx, tx, matterID); err != nil {
				return err
			}
			return fn(ctx, tx)
		})
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			svc.Logger.Warnf("matter lock contended, retrying matter_id:%v error:%v", matterID, err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

func lockMatterRow(ctx context.Context, tx bun.Tx, matterID int64) error {
	var id int64
	q := tx.NewSelect().
		Model((*models.Matter)(nil)).
		Column("id").
		Where("id = ?", matterID)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE NOWAIT")
	}
	err := q.Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: "matter", ID: matterID}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		return code == pgLockNotAvailable || code == pgSerializationFailure
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
