package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tidevault/ledger/internal/cache"
	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

// Sequencer supplies the current ledger sequence for version stamping on
// every write. The ledger header implements this.
type Sequencer interface {
	Sequence() uint64
}

// Adapter is the per-record-kind persistence component: the only code
// that talks to the backing store for its kind. Adapters own cache
// invalidation for their kind and record every mutation into the
// supplied delta.
type Adapter interface {
	Type() record.EntryType

	// Exists reports whether a record with key is present, consulting
	// the cache first.
	Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error)

	// Load returns the record for key or nil when absent. Cache first;
	// on a confirmed miss exactly one backing-store read, populating the
	// positive or negative cache. When d is non-nil a fresh load is
	// recorded into it for change-history purposes.
	Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error)

	// Add validates rec, stamps its version to the current ledger
	// sequence, invalidates the cache, inserts exactly one row, and
	// records the creation into d.
	Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error

	// Change is Add for a pre-existing record: one updated row, recorded
	// as a modification.
	Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error

	// Delete invalidates the cache, deletes the row, and records the
	// deletion into d.
	Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error

	// CountAll returns the number of records of this kind.
	CountAll(ctx context.Context, sc *Scope) (uint64, error)

	// DropAll drops this kind's table. Provisioning only.
	DropAll(ctx context.Context, sc *Scope) error
}

// Registry maps record kind to adapter: the central dispatch point for
// everything above the store. One registry value is constructed per
// process and passed explicitly; there is no global instance.
type Registry struct {
	store    *Store
	cache    *cache.EntryCache
	deps     *deps
	metrics  *Metrics
	adapters map[record.EntryType]Adapter
}

// NewRegistry builds the registry with an adapter for every record kind.
// The kind set is closed: dispatch is exhaustive by construction.
func NewRegistry(s *Store, c *cache.EntryCache, seq Sequencer) *Registry {
	d := &deps{cache: c, seq: seq, metrics: newMetrics()}
	r := &Registry{
		store:    s,
		cache:    c,
		deps:     d,
		metrics:  d.metrics,
		adapters: make(map[record.EntryType]Adapter, len(record.AllTypes)),
	}

	for _, a := range []Adapter{
		&statisticsAdapter{deps: d},
		&referenceAdapter{deps: d},
		&saleAdapter{deps: d},
		&keyValueAdapter{deps: d},
		&entityTypeAdapter{deps: d},
		&extSysAccountIDAdapter{deps: d},
		&extSysPoolAdapter{deps: d},
		&balanceAdapter{deps: d},
		&accountAdapter{deps: d},
		&accountLimitsAdapter{deps: d},
		&accountTypeLimitsAdapter{deps: d},
		&feeAdapter{deps: d},
	} {
		r.adapters[a.Type()] = a
	}
	return r
}

// ForType resolves the adapter for a record kind.
func (r *Registry) ForType(t record.EntryType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, errs.StorageInconsistency(errs.CodeUnsupportedRecordKind,
			"no adapter registered for record kind %s", t)
	}
	return a, nil
}

// Cache returns the shared entry cache.
func (r *Registry) Cache() *cache.EntryCache {
	return r.cache
}

// Metrics returns the store collectors for registration.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// Exists dispatches an existence check by key kind.
func (r *Registry) Exists(ctx context.Context, sc *Scope, key record.Key) (bool, error) {
	a, err := r.ForType(key.Type())
	if err != nil {
		return false, err
	}
	return a.Exists(ctx, sc, key)
}

// Load dispatches a load by key kind.
func (r *Registry) Load(ctx context.Context, sc *Scope, key record.Key, d *delta.Delta) (*record.Entry, error) {
	a, err := r.ForType(key.Type())
	if err != nil {
		return nil, err
	}
	return a.Load(ctx, sc, key, d)
}

// Add dispatches a creation by record kind.
func (r *Registry) Add(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	a, err := r.ForType(rec.Type())
	if err != nil {
		return err
	}
	return a.Add(ctx, sc, d, rec)
}

// Change dispatches a modification by record kind.
func (r *Registry) Change(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	a, err := r.ForType(rec.Type())
	if err != nil {
		return err
	}
	return a.Change(ctx, sc, d, rec)
}

// AddOrChange resolves existence first and dispatches to Add or Change.
// This is the only read-then-write entry point without an external lock;
// it is safe only because record mutation is confined to the single
// writer pipeline.
func (r *Registry) AddOrChange(ctx context.Context, sc *Scope, d *delta.Delta, rec *record.Entry) error {
	a, err := r.ForType(rec.Type())
	if err != nil {
		return err
	}
	exists, err := a.Exists(ctx, sc, rec.Key())
	if err != nil {
		return err
	}
	if exists {
		return a.Change(ctx, sc, d, rec)
	}
	return a.Add(ctx, sc, d, rec)
}

// LoadBalanceByAccountAsset returns the account's balance record in the
// given asset, or nil when the account holds none.
func (r *Registry) LoadBalanceByAccountAsset(ctx context.Context, sc *Scope, accountID, asset string, d *delta.Delta) (*record.Entry, error) {
	a, err := r.ForType(record.TypeBalance)
	if err != nil {
		return nil, err
	}
	return a.(*balanceAdapter).LoadByAccountAsset(ctx, sc, accountID, asset, d)
}

// LoadFeeForBand returns the fee row whose amount band covers amount, or
// nil when no fee is configured for the combination.
func (r *Registry) LoadFeeForBand(ctx context.Context, sc *Scope, feeType record.FeeType,
	asset string, subtype, amount int64, d *delta.Delta) (*record.Entry, error) {

	a, err := r.ForType(record.TypeFee)
	if err != nil {
		return nil, err
	}
	return a.(*feeAdapter).LoadForBand(ctx, sc, feeType, asset, subtype, amount, d)
}

// LoadAvailablePool returns the lowest-numbered pool slot for the external
// system type that is unbound or whose binding has expired, or nil when
// the pool is exhausted.
func (r *Registry) LoadAvailablePool(ctx context.Context, sc *Scope, externalSystemType int32, now time.Time, d *delta.Delta) (*record.Entry, error) {
	a, err := r.ForType(record.TypeExternalSystemAccountIDPool)
	if err != nil {
		return nil, err
	}
	return a.(*extSysPoolAdapter).LoadAvailable(ctx, sc, externalSystemType, now, d)
}

// Delete dispatches a deletion by key kind.
func (r *Registry) Delete(ctx context.Context, sc *Scope, d *delta.Delta, key record.Key) error {
	a, err := r.ForType(key.Type())
	if err != nil {
		return err
	}
	return a.Delete(ctx, sc, d, key)
}

// CountAll counts records per kind. Provisioning and inspection only.
func (r *Registry) CountAll(ctx context.Context, sc *Scope) (map[record.EntryType]uint64, error) {
	counts := make(map[record.EntryType]uint64, len(record.AllTypes))
	for _, t := range record.AllTypes {
		a := r.adapters[t]
		n, err := a.CountAll(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		counts[t] = n
	}
	return counts, nil
}

// Provision drops every record table, re-applies the schema, and purges
// the cache. Schema reset only - never part of the hot path.
func (r *Registry) Provision(ctx context.Context) error {
	sc := r.store.Base()
	for _, t := range record.AllTypes {
		if err := r.adapters[t].DropAll(ctx, sc); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	if err := applySchema(r.store.db); err != nil {
		return err
	}
	r.cache.Purge()
	return nil
}
