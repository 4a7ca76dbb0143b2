package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type feeAdapter struct {
	*deps
}

func (a *feeAdapter) Type() record.EntryType { return record.TypeFee }

const selectFee = `
	SELECT fee_type, asset, subtype, fixed, percent, lower_bound, upper_bound, lastmodified
	FROM fee`

func (a *feeAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.FeeKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("fee", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM fee WHERE fee_type = ? AND asset = ? AND subtype = ?`,
			k.FeeType, k.Asset, k.Subtype).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *feeAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.FeeKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("fee", "select")
		defer t.done()

		return a.scanFeeRow(sc.exec().QueryRowContext(ctx,
			selectFee+` WHERE fee_type = ? AND asset = ? AND subtype = ?`,
			k.FeeType, k.Asset, k.Subtype))
	})
}

func (a *feeAdapter) scanFeeRow(row *sql.Row) (*record.Entry, error) {
	var (
		body    record.Fee
		lastmod uint64
	)
	err := row.Scan(&body.FeeType, &body.Asset, &body.Subtype,
		&body.Fixed, &body.Percent, &body.LowerBound, &body.UpperBound, &lastmod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fee: %w", err)
	}
	return &record.Entry{LastModified: lastmod, Body: &body}, nil
}

// LoadForBand returns the fee row for (feeType, asset, subtype) whose
// amount band covers amount, or nil when none is configured. An upper
// bound of zero is unbounded above. The row is cached under its real key.
func (a *feeAdapter) LoadForBand(ctx context.Context, sc *Scope, feeType record.FeeType,
	asset string, subtype, amount int64, d *delta.Delta) (*record.Entry, error) {

	t := a.metrics.timeQuery("fee", "select")
	defer t.done()

	e, err := a.scanFeeRow(sc.exec().QueryRowContext(ctx,
		selectFee+` WHERE fee_type = ? AND asset = ? AND subtype = ?
			AND lower_bound <= ? AND (upper_bound = 0 OR ? <= upper_bound)
		ORDER BY lower_bound DESC LIMIT 1`,
		feeType, asset, subtype, amount, amount))
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

func (a *feeAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Fee](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "fee", `
		INSERT INTO fee (fee_type, asset, subtype, fixed, percent, lower_bound, upper_bound, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Fee)
			return []any{b.FeeType, b.Asset, b.Subtype,
				b.Fixed, b.Percent, b.LowerBound, b.UpperBound, rec.LastModified}
		})
}

func (a *feeAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Fee](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "fee", `
		UPDATE fee
		SET fixed = ?, percent = ?, lower_bound = ?, upper_bound = ?, lastmodified = ?
		WHERE fee_type = ? AND asset = ? AND subtype = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Fee)
			return []any{b.Fixed, b.Percent, b.LowerBound, b.UpperBound, rec.LastModified,
				b.FeeType, b.Asset, b.Subtype}
		})
}

func (a *feeAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.FeeKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "fee",
		`DELETE FROM fee WHERE fee_type = ? AND asset = ? AND subtype = ?`,
		k.FeeType, k.Asset, k.Subtype)
}

func (a *feeAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "fee")
}

func (a *feeAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "fee")
}
