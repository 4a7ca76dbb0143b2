package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type accountAdapter struct {
	*deps
}

func (a *accountAdapter) Type() record.EntryType { return record.TypeAccount }

func (a *accountAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.AccountKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("account", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM account WHERE account_id = ?`, k.AccountID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *accountAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.AccountKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("account", "select")
		defer t.done()

		var (
			body    record.Account
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, `
			SELECT account_id, account_type, thresholds, lastmodified
			FROM account WHERE account_id = ?`, k.AccountID).
			Scan(&body.AccountID, &body.AccountType, &body.Thresholds, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load account: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *accountAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Account](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "account", `
		INSERT INTO account (account_id, account_type, thresholds, lastmodified)
		VALUES (?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Account)
			return []any{b.AccountID, b.AccountType, b.Thresholds, rec.LastModified}
		})
}

func (a *accountAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Account](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "account", `
		UPDATE account
		SET account_type = ?, thresholds = ?, lastmodified = ?
		WHERE account_id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Account)
			return []any{b.AccountType, b.Thresholds, rec.LastModified, b.AccountID}
		})
}

func (a *accountAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.AccountKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "account",
		`DELETE FROM account WHERE account_id = ?`, k.AccountID)
}

func (a *accountAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "account")
}

func (a *accountAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "account")
}

type accountLimitsAdapter struct {
	*deps
}

func (a *accountLimitsAdapter) Type() record.EntryType { return record.TypeAccountLimits }

func (a *accountLimitsAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.AccountLimitsKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("account_limits", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM account_limits WHERE account_id = ?`, k.AccountID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *accountLimitsAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.AccountLimitsKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("account_limits", "select")
		defer t.done()

		var (
			body    record.AccountLimits
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, `
			SELECT account_id, daily_out, weekly_out, monthly_out, annual_out, lastmodified
			FROM account_limits WHERE account_id = ?`, k.AccountID).
			Scan(&body.AccountID,
				&body.Limits.DailyOut, &body.Limits.WeeklyOut,
				&body.Limits.MonthlyOut, &body.Limits.AnnualOut, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load account limits: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *accountLimitsAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.AccountLimits](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "account_limits", `
		INSERT INTO account_limits (account_id, daily_out, weekly_out, monthly_out, annual_out, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.AccountLimits)
			return []any{b.AccountID,
				b.Limits.DailyOut, b.Limits.WeeklyOut,
				b.Limits.MonthlyOut, b.Limits.AnnualOut, rec.LastModified}
		})
}

func (a *accountLimitsAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.AccountLimits](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "account_limits", `
		UPDATE account_limits
		SET daily_out = ?, weekly_out = ?, monthly_out = ?, annual_out = ?, lastmodified = ?
		WHERE account_id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.AccountLimits)
			return []any{b.Limits.DailyOut, b.Limits.WeeklyOut,
				b.Limits.MonthlyOut, b.Limits.AnnualOut, rec.LastModified, b.AccountID}
		})
}

func (a *accountLimitsAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.AccountLimitsKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "account_limits",
		`DELETE FROM account_limits WHERE account_id = ?`, k.AccountID)
}

func (a *accountLimitsAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "account_limits")
}

func (a *accountLimitsAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "account_limits")
}

type accountTypeLimitsAdapter struct {
	*deps
}

func (a *accountTypeLimitsAdapter) Type() record.EntryType { return record.TypeAccountTypeLimits }

func (a *accountTypeLimitsAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.AccountTypeLimitsKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("account_type_limits", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM account_type_limits WHERE account_type = ?`, k.AccountType).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *accountTypeLimitsAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.AccountTypeLimitsKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("account_type_limits", "select")
		defer t.done()

		var (
			body    record.AccountTypeLimits
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, `
			SELECT account_type, daily_out, weekly_out, monthly_out, annual_out, lastmodified
			FROM account_type_limits WHERE account_type = ?`, k.AccountType).
			Scan(&body.AccountType,
				&body.Limits.DailyOut, &body.Limits.WeeklyOut,
				&body.Limits.MonthlyOut, &body.Limits.AnnualOut, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load account type limits: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *accountTypeLimitsAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.AccountTypeLimits](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "account_type_limits", `
		INSERT INTO account_type_limits (account_type, daily_out, weekly_out, monthly_out, annual_out, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.AccountTypeLimits)
			return []any{b.AccountType,
				b.Limits.DailyOut, b.Limits.WeeklyOut,
				b.Limits.MonthlyOut, b.Limits.AnnualOut, rec.LastModified}
		})
}

func (a *accountTypeLimitsAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.AccountTypeLimits](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "account_type_limits", `
		UPDATE account_type_limits
		SET daily_out = ?, weekly_out = ?, monthly_out = ?, annual_out = ?, lastmodified = ?
		WHERE account_type = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.AccountTypeLimits)
			return []any{b.Limits.DailyOut, b.Limits.WeeklyOut,
				b.Limits.MonthlyOut, b.Limits.AnnualOut, rec.LastModified, b.AccountType}
		})
}

func (a *accountTypeLimitsAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.AccountTypeLimitsKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "account_type_limits",
		`DELETE FROM account_type_limits WHERE account_type = ?`, k.AccountType)
}

func (a *accountTypeLimitsAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "account_type_limits")
}

func (a *accountTypeLimitsAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "account_type_limits")
}
