package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

type keyValueAdapter struct {
	*deps
}

func (a *keyValueAdapter) Type() record.EntryType { return record.TypeKeyValue }

const selectKeyValue = `
	SELECT key, value_type, string_value, uint32_value, uint64_value, version, lastmodified
	FROM key_value_entry`

func (a *keyValueAdapter) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	k, err := keyAs[record.KeyValueKey](key)
	if err != nil {
		return false, err
	}
	return a.existsThrough(key, func() (bool, error) {
		t := a.metrics.timeQuery("key_value_entry", "select")
		defer t.done()

		var one int
		err := sc.exec().QueryRowContext(ctx,
			`SELECT 1 FROM key_value_entry WHERE key = ?`, k.EntryKey).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
}

func (a *keyValueAdapter) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	k, err := keyAs[record.KeyValueKey](key)
	if err != nil {
		return nil, err
	}
	return a.loadThrough(key, d, func() (*record.Entry, error) {
		t := a.metrics.timeQuery("key_value_entry", "select")
		defer t.done()

		var (
			body    record.KeyValue
			vt      int
			lastmod uint64
		)
		err := sc.exec().QueryRowContext(ctx, selectKeyValue+` WHERE key = ?`, k.EntryKey).
			Scan(&body.EntryKey, &vt, &body.StringVal, &body.Uint32Val, &body.Uint64Val,
				&body.BodyVersion, &lastmod)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load key value: %w", err)
		}
		body.ValueType = record.KeyValueType(vt)
		return &record.Entry{LastModified: lastmod, Body: &body}, nil
	})
}

func (a *keyValueAdapter) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.KeyValue](rec); err != nil {
		return err
	}
	return a.storeAdd(ctx, sc, d, rec, "key_value_entry", `
		INSERT INTO key_value_entry (key, value_type, string_value, uint32_value, uint64_value, version, lastmodified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.KeyValue)
			return []any{b.EntryKey, int(b.ValueType), b.StringVal, b.Uint32Val, b.Uint64Val,
				b.BodyVersion, rec.LastModified}
		})
}

func (a *keyValueAdapter) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	if _, err := bodyAs[*record.KeyValue](rec); err != nil {
		return err
	}
	return a.storeChange(ctx, sc, d, rec, "key_value_entry", `
		UPDATE key_value_entry
		SET value_type = ?, string_value = ?, uint32_value = ?, uint64_value = ?, version = ?, lastmodified = ?
		WHERE key = ?`,
		func(rec *record.Entry) []any {
			b := rec.Body.(*record.KeyValue)
			return []any{int(b.ValueType), b.StringVal, b.Uint32Val, b.Uint64Val,
				b.BodyVersion, rec.LastModified, b.EntryKey}
		})
}

func (a *keyValueAdapter) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	k, err := keyAs[record.KeyValueKey](key)
	if err != nil {
		return err
	}
	return a.storeDelete(ctx, sc, d, key, "key_value_entry",
		`DELETE FROM key_value_entry WHERE key = ?`, k.EntryKey)
}

func (a *keyValueAdapter) CountAll(ctx context.Context, sc *Scope) (uint64, error) {
	return a.countRows(ctx, sc, "key_value_entry")
}

func (a *keyValueAdapter) DropAll(ctx context.Context, sc *Scope) error {
	return a.dropTable(ctx, sc, "key_value_entry")
}
