package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type balanceAdapter struct {
	*deps
}

func (a *balanceAdapter) Type() record.EntryType { return record.TypeBalance }

const selectBalance = `
	SELECT balance_id, account_id, asset, amount, locked, lastmodified
	FROM balance`

func (a *balanceAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.BalanceKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("balance", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM balance WHERE balance_id = ?`, k.BalanceID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *balanceAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.BalanceKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("balance", "select")
		defer t.done()

		return a.scanBalanceRow(sc.exec().QueryRowContext(ctx,
			selectBalance+` WHERE balance_id = ?`, k.BalanceID))
	})
}

func (a *balanceAdapter) scanBalanceRow(row *sql.Row) (*record.Entry, error) {
	var (
		body    record.Balance
		lastmod uint64
	)
	err := row.Scan(&body.BalanceID, &body.AccountID, &body.Asset, &body.Amount, &body.Locked, &lastmod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return &record.Entry{LastModified: lastmod, Body: &body}, nil
}

// LoadByAccountAsset returns the account's balance in the given asset, or
// nil when none exists. The row is cached under its real key.
func (a *balanceAdapter) LoadByAccountAsset(ctx context.Context, sc *Scope, accountID, asset string, d *delta.Delta) (*record.Entry, error) {
	t := a.metrics.timeQuery("balance", "select")
	defer t.done()

	e, err := a.scanBalanceRow(sc.exec().QueryRowContext(ctx,
		selectBalance+` WHERE account_id = ? AND asset = ? ORDER BY balance_id ASC LIMIT 1`,
		accountID, asset))
	if err != nil || e == nil {
		return e, err
	}
	if d != nil {
		if err := d.RecordEntry(e); err != nil {
			return nil, err
		}
	}
	a.cache.Put(e.Key(), e)
	return e, nil
}

func (a *balanceAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Balance](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "balance", `
		INSERT INTO balance (balance_id, account_id, asset, amount, locked, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Balance)
			return []any{b.BalanceID, b.AccountID, b.Asset, b.Amount, b.Locked, rec.LastModified}
		})
}

func (a *balanceAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Balance](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "balance", `
		UPDATE balance
		SET account_id = ?, asset = ?, amount = ?, locked = ?, lastmodified = ?
		WHERE balance_id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Balance)
			return []any{b.AccountID, b.Asset, b.Amount, b.Locked, rec.LastModified, b.BalanceID}
		})
}

func (a *balanceAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.BalanceKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "balance",
		`DELETE FROM balance WHERE balance_id = ?`, k.BalanceID)
}

func (a *balanceAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "balance")
}

func (a *balanceAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "balance")
}
