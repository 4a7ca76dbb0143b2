package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type saleAdapter struct {
	*deps
}

func (a *saleAdapter) Type() record.EntryType { return record.TypeSale }

const selectSale = `
	SELECT id, owner_id, base_asset, quote_asset, start_time, end_time,
	       price, soft_cap, hard_cap, current_cap, base_balance, quote_balance, details, lastmodified
	FROM sale`

func (a *saleAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.SaleKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("sale", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM sale WHERE id = ?`, k.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *saleAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.SaleKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("sale", "select")
		defer t.done()

		var (
			body       record.Sale
			start, end int64
			lastmod    uint64
		)
		err := sc.exec().QueryRowContext(ctx, selectSale+` WHERE id = ?`, k.ID).
			Scan(&body.ID, &body.OwnerID, &body.BaseAsset, &body.QuoteAsset, &start, &end,
				&body.Price, &body.SoftCap, &body.HardCap, &body.CurrentCap,
				&body.BaseBalance, &body.QuoteBalance, &body.Details, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load sale: %w", err)
		}
		body.StartTime = time.Unix(start, 0).UTC()
		body.EndTime = time.Unix(end, 0).UTC()
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *saleAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Sale](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "sale", `
		INSERT INTO sale (id, owner_id, base_asset, quote_asset, start_time, end_time,
		                  price, soft_cap, hard_cap, current_cap, base_balance, quote_balance, details, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saleArgs)
}

func (a *saleAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Sale](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "sale", `
		UPDATE sale
		SET owner_id = ?, base_asset = ?, quote_asset = ?, start_time = ?, end_time = ?,
		    price = ?, soft_cap = ?, hard_cap = ?, current_cap = ?, base_balance = ?,
		    quote_balance = ?, details = ?, lastmodified = ?
		WHERE id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Sale)
			return []any{b.OwnerID, b.BaseAsset, b.QuoteAsset, b.StartTime.Unix(), b.EndTime.Unix(),
				b.Price, b.SoftCap, b.HardCap, b.CurrentCap, b.BaseBalance, b.QuoteBalance,
				b.Details, rec.LastModified, b.ID}
		})
}

func saleArgs(rec *record.Entry) []any {
	b := rec.Body.(*record.Sale)
	return []any{b.ID, b.OwnerID, b.BaseAsset, b.QuoteAsset, b.StartTime.Unix(), b.EndTime.Unix(),
		b.Price, b.SoftCap, b.HardCap, b.CurrentCap, b.BaseBalance, b.QuoteBalance,
		b.Details, rec.LastModified}
}

func (a *saleAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.SaleKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "sale", `DELETE FROM sale WHERE id = ?`, k.ID)
}

func (a *saleAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "sale")
}

func (a *saleAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "sale")
}
