package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

// keyAs casts a dispatched key to the adapter's concrete key type. A
// mismatch means the registry dispatched to the wrong adapter - a defect,
// not runtime input.
func keyAs[K record.Key](key record.Key) (K, error) {
	k, ok := key.(K)
	if !ok {
		return k, errs.StorageInconsistency(errs.CodeInvalidRecord,
			"key type %T dispatched to wrong adapter", key)
	}
	return k, nil
}

// bodyAs casts a dispatched entry body to the adapter's concrete type.
func bodyAs[B record.Body](rec *record.Entry) (B, error) {
	b, ok := rec.Body.(B)
	if !ok {
		return b, errs.StorageInconsistency(errs.CodeInvalidRecord,
			"body type %T dispatched to wrong adapter", rec.Body)
	}
	return b, nil
}

type statisticsAdapter struct {
	*deps
}

func (a *statisticsAdapter) Type() record.EntryType { return record.TypeStatistics }

const selectStatistics = `
	SELECT account_id, daily_out, weekly_out, monthly_out, annual_out, updated_at, lastmodified
	FROM statistics`

func (a *statisticsAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.StatisticsKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("statistics", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM statistics WHERE account_id = ?`, k.AccountID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *statisticsAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.StatisticsKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("statistics", "select")
		defer t.done()

		var (
			body    record.Statistics
			updated int64
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, selectStatistics+` WHERE account_id = ?`, k.AccountID).
			Scan(&body.AccountID, &body.DailyOutcome, &body.WeeklyOutcome,
				&body.MonthlyOutcome, &body.AnnualOutcome, &updated, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load statistics: %w", err)
		}
		body.UpdatedAt = time.Unix(updated, 0).UTC()
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *statisticsAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Statistics](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "statistics", `
		INSERT INTO statistics (account_id, daily_out, weekly_out, monthly_out, annual_out, updated_at, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Statistics)
			return []any{b.AccountID, b.DailyOutcome, b.WeeklyOutcome, b.MonthlyOutcome,
				b.AnnualOutcome, b.UpdatedAt.Unix(), rec.LastModified}
		})
}

func (a *statisticsAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Statistics](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "statistics", `
		UPDATE statistics
		SET daily_out = ?, weekly_out = ?, monthly_out = ?, annual_out = ?, updated_at = ?, lastmodified = ?
		WHERE account_id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Statistics)
			return []any{b.DailyOutcome, b.WeeklyOutcome, b.MonthlyOutcome, b.AnnualOutcome,
				b.UpdatedAt.Unix(), rec.LastModified, b.AccountID}
		})
}

func (a *statisticsAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.StatisticsKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "statistics",
		`DELETE FROM statistics WHERE account_id = ?`, k.AccountID)
}

func (a *statisticsAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "statistics")
}

func (a *statisticsAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "statistics")
}
