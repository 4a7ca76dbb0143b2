package store

import (
	"context"
	"fmt"

	"github.com/tidevault/ledger/internal/cache"
	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

// deps shared by every adapter: the entry cache, the ledger sequence
// source for version stamps, and the statement timers.
type deps struct {
	cache   *cache.EntryCache
	seq     Sequencer
	metrics *Metrics
}

// loadThrough is the shared read-through path: cache first; on a
// confirmed miss exactly one fetch against the backing store, then
// populate the positive or negative cache. A fresh load is recorded into
// d when non-nil.
func (dp *deps) loadThrough(key record.Key, d *delta.Delta, fetch func() (*record.Entry, error)) (*record.Entry, error) {
	if e, cached := dp.cache.Get(key); cached {
		return e, nil
	}

	e, err := fetch()
	if err != nil {
		return nil, err
	}
	if e == nil {
		dp.cache.PutNegative(key)
		return nil, nil
	}

	if d != nil {
		if err := d.RecordEntry(e); err != nil {
			return nil, err
		}
	}
	dp.cache.Put(key, e)
	return e, nil
}

// existsThrough answers an existence check from the cache when possible,
// falling back to the given single-row probe.
func (dp *deps) existsThrough(key record.Key, probe func() (bool, error)) (bool, error) {
	if dp.cache.Exists(key) {
		return true, nil
	}
	return probe()
}

// prepareWrite validates the record and stamps its version to the current
// ledger sequence, then invalidates the cache entry for its key. The
// invalidation happens before the write is issued, so no stale entry can
// survive a mutation that is about to happen even if the write fails.
func (dp *deps) prepareWrite(rec *record.Entry) error {
	if err := rec.Body.Validate(); err != nil {
		e := errs.StorageInconsistency(errs.CodeInvalidRecord, "invalid %s record", rec.Type())
		e.Err = err
		return e
	}
	rec.LastModified = dp.seq.Sequence()
	dp.cache.Invalidate(rec.Key())
	return nil
}

// execOne runs a write statement and asserts exactly one row was
// affected; anything else is a storage inconsistency that must abort the
// enclosing apply.
func (dp *deps) execOne(ctx context.Context, sc *Scope, table, op, query string, args ...any) error {
	t := dp.metrics.timeQuery(table, op)
	res, err := sc.exec().ExecContext(ctx, query, args...)
	t.done()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, table, err)
	}
	dp.metrics.rowsAffected.WithLabelValues(table, op).Add(float64(n))
	if n != 1 {
		return errs.StorageInconsistency(errs.CodeAffectedRows,
			"%s %s affected %d rows, expected 1", op, table, n)
	}
	return nil
}

// execDelete runs a delete without the affected-rows assertion; deleting
// an absent row is not an inconsistency.
func (dp *deps) execDelete(ctx context.Context, sc *Scope, table, query string, args ...any) error {
	t := dp.metrics.timeQuery(table, "delete")
	_, err := sc.exec().ExecContext(ctx, query, args...)
	t.done()
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// countRows counts a table. Provisioning and inspection only.
func (dp *deps) countRows(ctx context.Context, sc *Scope, table string) (uint64, error) {
	t := dp.metrics.timeQuery(table, "select")
	defer t.done()

	var n uint64
	err := sc.exec().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// dropTable drops a table if it exists.
func (dp *deps) dropTable(ctx context.Context, sc *Scope, table string) error {
	_, err := sc.exec().ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	if err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}

// storeAdd is the shared tail of every Add: prepare, insert exactly one
// row, record the creation into the delta.
func (dp *deps) storeAdd(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry,
	table, query string, args func(*record.Entry) []any) error {

	if err := dp.prepareWrite(rec); err != nil {
		return err
	}
	if err := dp.execOne(ctx, sc, table, "insert", query, args(rec)...); err != nil {
		return err
	}
	return d.AddEntry(rec)
}

// storeChange is the shared tail of every Change: prepare, update exactly
// one row, record the modification into the delta.
func (dp *deps) storeChange(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry,
	table, query string, args func(*record.Entry) []any) error {

	if err := dp.prepareWrite(rec); err != nil {
		return err
	}
	if err := dp.execOne(ctx, sc, table, "update", query, args(rec)...); err != nil {
		return err
	}
	return d.ModEntry(rec)
}

// storeDelete is the shared tail of every Delete: invalidate, delete,
// record the deletion into the delta.
func (dp *deps) storeDelete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key,
	table, query string, args ...any) error {

	dp.cache.Invalidate(key)
	if err := dp.execDelete(ctx, sc, table, query, args...); err != nil {
		return err
	}
	return d.DeleteEntry(key)
}
