package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type entityTypeAdapter struct {
	*deps
}

func (a *entityTypeAdapter) Type() record.EntryType { return record.TypeEntityType }

func (a *entityTypeAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.EntityTypeKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("entity_types", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM entity_types WHERE id = ? AND domain = ?`, k.ID, k.Domain).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *entityTypeAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.EntityTypeKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("entity_types", "select")
		defer t.done()

		var (
			body    record.EntityType
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx,
			`SELECT id, domain, name, lastmodified FROM entity_types WHERE id = ? AND domain = ?`,
			k.ID, k.Domain).Scan(&body.ID, &body.Domain, &body.Name, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load entity type: %w", err)
		}
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *entityTypeAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.EntityType](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "entity_types", `
		INSERT INTO entity_types (id, domain, name, lastmodified)
		VALUES (?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.EntityType)
			return []any{b.ID, b.Domain, b.Name, rec.LastModified}
		})
}

func (a *entityTypeAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.EntityType](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "entity_types", `
		UPDATE entity_types SET name = ?, lastmodified = ? WHERE id = ? AND domain = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.EntityType)
			return []any{b.Name, rec.LastModified, b.ID, b.Domain}
		})
}

func (a *entityTypeAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.EntityTypeKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "entity_types",
		`DELETE FROM entity_types WHERE id = ? AND domain = ?`, k.ID, k.Domain)
}

func (a *entityTypeAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "entity_types")
}

func (a *entityTypeAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "entity_types")
}
