package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

// referenceAdapter persists idempotency markers. References are add-only:
// updating one makes no sense and is rejected as a defect.
type referenceAdapter struct {
	*deps
}

func (a *referenceAdapter) Type() record.EntryType { return record.TypeReference }

func (a *referenceAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.ReferenceKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("reference", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM reference WHERE sender = ? AND reference = ?`,
			k.Sender, k.Reference).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *referenceAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.ReferenceKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("reference", "select")
		defer t.done()

		var (
			body    record.Reference
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx,
			`SELECT sender, reference, lastmodified FROM reference WHERE sender = ? AND reference = ?`,
			k.Sender, k.Reference).Scan(&body.Sender, &body.Reference, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load reference: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *referenceAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.Reference](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "reference", `
		INSERT INTO reference (sender, reference, lastmodified)
		VALUES (?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.Reference)
			return []any{b.Sender, b.Reference, rec.LastModified}
		})
}

func (a *referenceAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	return errs.StorageInconsistency(errs.CodeInvalidRecord,
		"update for reference is not supported")
}

func (a *referenceAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.ReferenceKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "reference",
		`DELETE FROM reference WHERE sender = ? AND reference = ?`, k.Sender, k.Reference)
}

func (a *referenceAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "reference")
}

func (a *referenceAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "reference")
}
