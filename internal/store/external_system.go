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

// extSysAccountIDAdapter persists account bindings to external-system
// identifiers.
type extSysAccountIDAdapter struct {
	*deps
}

func (a *extSysAccountIDAdapter) Type() record.EntryType {
	return record.TypeExternalSystemAccountID
}

func (a *extSysAccountIDAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.ExternalSystemAccountIDKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("external_system_account_id", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM external_system_account_id WHERE account_id = ? AND external_system_type = ?`,
			k.AccountID, k.ExternalSystemType).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *extSysAccountIDAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.ExternalSystemAccountIDKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("external_system_account_id", "select")
		defer t.done()

		var (
			body    record.ExternalSystemAccountID
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, `
			SELECT account_id, external_system_type, data, lastmodified
			FROM external_system_account_id
			WHERE account_id = ? AND external_system_type = ?`,
			k.AccountID, k.ExternalSystemType).
			Scan(&body.AccountID, &body.ExternalSystemType, &body.Data, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load external system account id: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *extSysAccountIDAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.ExternalSystemAccountID](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "external_system_account_id", `
		INSERT INTO external_system_account_id (account_id, external_system_type, data, lastmodified)
		VALUES (?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.ExternalSystemAccountID)
			return []any{b.AccountID, b.ExternalSystemType, b.Data, rec.LastModified}
		})
}

func (a *extSysAccountIDAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.ExternalSystemAccountID](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "external_system_account_id", `
		UPDATE external_system_account_id
		SET data = ?, lastmodified = ?
		WHERE account_id = ? AND external_system_type = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.ExternalSystemAccountID)
			return []any{b.Data, rec.LastModified, b.AccountID, b.ExternalSystemType}
		})
}

func (a *extSysAccountIDAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.ExternalSystemAccountIDKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "external_system_account_id",
		`DELETE FROM external_system_account_id WHERE account_id = ? AND external_system_type = ?`,
		k.AccountID, k.ExternalSystemType)
}

func (a *extSysAccountIDAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "external_system_account_id")
}

func (a *extSysAccountIDAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "external_system_account_id")
}

// extSysPoolAdapter persists the pool of bindable external-system
// identifiers.
type extSysPoolAdapter struct {
	*deps
}

func (a *extSysPoolAdapter) Type() record.EntryType {
	return record.TypeExternalSystemAccountIDPool
}

const selectExtSysPool = `
	SELECT pool_id, external_system_type, data, account_id, expires_at, binded_at, lastmodified
	FROM external_system_account_id_pool`

func (a *extSysPoolAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.ExternalSystemAccountIDPoolKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("external_system_account_id_pool", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM external_system_account_id_pool WHERE pool_id = ?`, k.PoolID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *extSysPoolAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.ExternalSystemAccountIDPoolKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("external_system_account_id_pool", "select")
		defer t.done()

		return a.scanPoolRow(sc.exec().QueryRowContext(ctx,
			selectExtSysPool+` WHERE pool_id = ?`, k.PoolID))
	})
}

func (a *extSysPoolAdapter) scanPoolRow(row *sql.Row) (*record.Entry, error) {
	var (
		body            record.ExternalSystemAccountIDPool
		expires, binded int64
		lastmod         uint64
	)
	err := row.Scan(&body.PoolID, &body.ExternalSystemType, &body.Data, &body.AccountID,
		&expires, &binded, &lastmod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load external system pool entry: %w", err)
	}
	body.ExpiresAt = time.Unix(expires, 0).UTC()
	body.BindedAt = time.Unix(binded, 0).UTC()
	return &record.Entry{LastModified: lastmod, Body: &body}, nil
}

// LoadAvailable returns the lowest-id pool entry for the external system
// that is unbound or whose binding has expired, or nil when the pool is
// exhausted. Used by the external-system binding operations.
func (a *extSysPoolAdapter) LoadAvailable(ctx context.Context, sc *Scope, externalSystemType int32, now time.Time, d *delta.Delta) (*record.Entry, error) {
	t := a.metrics.timeQuery("external_system_account_id_pool", "select")
	defer t.done()

	e, err := a.scanPoolRow(sc.exec().QueryRowContext(ctx, selectExtSysPool+`
		WHERE external_system_type = ? AND (account_id = '' OR expires_at < ?)
		ORDER BY pool_id ASC LIMIT 1`,
		externalSystemType, now.Unix()))
	if err != nil || e == nil {
		return e, err
	}
	if d != nil {
		if err := d.RecordEntry(e); err != nil {
			return nil, err
		}
	}
	// Cache under its real key so the follow-up keyed load is served.
	a.cache.Put(e.Key(), e)
	return e, nil
}

func (a *extSysPoolAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.ExternalSystemAccountIDPool](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "external_system_account_id_pool", `
		INSERT INTO external_system_account_id_pool
			(pool_id, external_system_type, data, account_id, expires_at, binded_at, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.ExternalSystemAccountIDPool)
			return []any{b.PoolID, b.ExternalSystemType, b.Data, b.AccountID,
				b.ExpiresAt.Unix(), b.BindedAt.Unix(), rec.LastModified}
		})
}

func (a *extSysPoolAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.ExternalSystemAccountIDPool](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "external_system_account_id_pool", `
		UPDATE external_system_account_id_pool
		SET external_system_type = ?, data = ?, account_id = ?, expires_at = ?, binded_at = ?, lastmodified = ?
		WHERE pool_id = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.ExternalSystemAccountIDPool)
			return []any{b.ExternalSystemType, b.Data, b.AccountID,
				b.ExpiresAt.Unix(), b.BindedAt.Unix(), rec.LastModified, b.PoolID}
		})
}

func (a *extSysPoolAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.ExternalSystemAccountIDPoolKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "external_system_account_id_pool",
		`DELETE FROM external_system_account_id_pool WHERE pool_id = ?`, k.PoolID)
}

func (a *extSysPoolAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "external_system_account_id_pool")
}

func (a *extSysPoolAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "external_system_account_id_pool")
}
