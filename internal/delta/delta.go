// Package delta implements the ledger delta: an ordered, nestable journal
// of pending record mutations scoped to one unit of work (a whole
// transaction, or a single operation within it).
//
// A delta never touches the backing store. Adapters write to the store
// inside the pipeline's native SQL transaction and record each effect into
// the delta; the delta's job is to remember pre-images for change-history
// generation and to make per-operation rollback expressible: a child delta
// commits its journal into its parent, or discards it with no observable
// side effect.
package delta

import (
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

// State tracks the delta lifecycle. A delta is Open until exactly one of
// Commit or Discard finalizes it; any use after that is a defect.
type State int

const (
	Open State = iota
	Committed
	Discarded
)

// ChangeType tags one journal entry.
type ChangeType int

const (
	// ChangeCreated records a record added in this delta.
	ChangeCreated ChangeType = iota + 1

	// ChangeUpdated records a mutation of a pre-existing record.
	ChangeUpdated

	// ChangeRemoved records a deletion.
	ChangeRemoved

	// ChangeState records a read snapshot taken for change-history
	// purposes without any mutation.
	ChangeState
)

// Change is one (key, pre-image, post-image) element of a change list.
type Change struct {
	Type ChangeType
	Key  record.Key

	// Previous is the pre-image; nil for ChangeCreated.
	Previous *record.Entry

	// Current is the post-image; nil for ChangeRemoved.
	Current *record.Entry
}

// Delta is a mutation journal. Not safe for concurrent use: all mutation
// of one delta tree happens on the single writer pipeline.
type Delta struct {
	parent *Delta
	state  State

	created map[string]*record.Entry
	updated map[string]*record.Entry
	deleted map[string]record.Key

	// previous holds the pre-delta state of every touched key, captured
	// the first time the key is touched in this delta.
	previous map[string]*record.Entry

	// order fixes the iteration order of Changes to first-touch order;
	// touched is its membership index.
	order   []string
	touched map[string]bool

	// journal is the full uncollapsed change sequence (AllChanges).
	journal []Change
}

// New creates a root delta.
func New() *Delta {
	return &Delta{
		created:  make(map[string]*record.Entry),
		updated:  make(map[string]*record.Entry),
		deleted:  make(map[string]record.Key),
		previous: make(map[string]*record.Entry),
		touched:  make(map[string]bool),
	}
}

// NewChild returns a delta that observes this delta's state and
// accumulates independently. Committing the child folds its journal into
// this delta; discarding it leaves this delta untouched.
func (d *Delta) NewChild() *Delta {
	child := New()
	child.parent = d
	return child
}

// State returns the delta's lifecycle state.
func (d *Delta) State() State {
	return d.state
}

func (d *Delta) checkOpen() error {
	if d.state != Open {
		return errs.StorageInconsistency(errs.CodeUseAfterFinalize,
			"delta used after finalize (state=%d)", d.state)
	}
	return nil
}

// effective returns this delta tree's latest post-image for key, walking
// up through parents. found=false means no ancestor touched the key.
func (d *Delta) effective(key string) (*record.Entry, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if _, ok := cur.deleted[key]; ok {
			return nil, true
		}
		if e, ok := cur.created[key]; ok {
			return e, true
		}
		if e, ok := cur.updated[key]; ok {
			return e, true
		}
	}
	return nil, false
}

// capturePrevious saves the pre-delta state the first time key is touched.
// loaded is the snapshot the caller saw before mutating (nil when the
// caller knows the record is absent).
func (d *Delta) capturePrevious(key string, loaded *record.Entry) {
	if _, ok := d.previous[key]; ok {
		return
	}
	if e, ok := d.effective(key); ok {
		d.previous[key] = e.Clone()
		d.touch(key)
		return
	}
	d.previous[key] = loaded.Clone()
	d.touch(key)
}

func (d *Delta) touch(key string) {
	if d.touched[key] {
		return
	}
	d.touched[key] = true
	d.order = append(d.order, key)
}

// AddEntry records the creation of rec. The key must not already carry a
// live record in this delta.
func (d *Delta) AddEntry(rec *record.Entry) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	key := record.CacheKey(rec.Key())

	if _, ok := d.deleted[key]; ok {
		// Re-created after delete within the same scope: net effect is
		// an update against the pre-delta state.
		delete(d.deleted, key)
		d.updated[key] = rec.Clone()
		d.journal = append(d.journal, Change{Type: ChangeCreated, Key: rec.Key(), Current: rec.Clone()})
		return nil
	}
	if _, ok := d.created[key]; ok {
		return errs.StorageInconsistency(errs.CodeInvalidRecord,
			"record added twice in one delta (key=%s)", key)
	}
	if _, ok := d.updated[key]; ok {
		return errs.StorageInconsistency(errs.CodeInvalidRecord,
			"record added over a live update (key=%s)", key)
	}

	d.capturePrevious(key, nil)
	d.created[key] = rec.Clone()
	d.journal = append(d.journal, Change{Type: ChangeCreated, Key: rec.Key(), Current: rec.Clone()})
	return nil
}

// ModEntry records a mutation of rec. The pre-image is whatever this
// delta captured for the key on first touch (via a prior mutation or
// RecordEntry); for a key first touched here, the caller's loaded
// snapshot should have been recorded with RecordEntry during load.
func (d *Delta) ModEntry(rec *record.Entry) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	key := record.CacheKey(rec.Key())

	if _, ok := d.deleted[key]; ok {
		return errs.StorageInconsistency(errs.CodeInvalidRecord,
			"record modified after delete (key=%s)", key)
	}

	prev := d.previousFor(key)
	if _, ok := d.created[key]; ok {
		// Still a creation as far as this delta's collapsed view goes.
		d.created[key] = rec.Clone()
	} else {
		d.capturePrevious(key, prev)
		d.updated[key] = rec.Clone()
	}
	d.journal = append(d.journal, Change{
		Type:     ChangeUpdated,
		Key:      rec.Key(),
		Previous: prev.Clone(),
		Current:  rec.Clone(),
	})
	return nil
}

// DeleteEntry records the deletion of key.
func (d *Delta) DeleteEntry(key record.Key) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	ck := record.CacheKey(key)
	prev := d.previousFor(ck)

	if _, ok := d.created[ck]; ok {
		// Created and deleted inside the same scope: no net effect.
		delete(d.created, ck)
	} else {
		d.capturePrevious(ck, prev)
		delete(d.updated, ck)
		d.deleted[ck] = key
	}
	d.journal = append(d.journal, Change{Type: ChangeRemoved, Key: key, Previous: prev.Clone()})
	return nil
}

// RecordEntry captures a read snapshot of rec for change-history purposes
// without recording a mutation. Adapters call this when a load is served
// on behalf of a delta-scoped unit of work.
func (d *Delta) RecordEntry(rec *record.Entry) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	key := record.CacheKey(rec.Key())
	d.capturePrevious(key, rec)
	d.journal = append(d.journal, Change{Type: ChangeState, Key: rec.Key(), Current: rec.Clone()})
	return nil
}

// previousFor returns the current view of the key's state within this
// delta tree, falling back to the captured pre-image.
func (d *Delta) previousFor(key string) *record.Entry {
	if e, ok := d.effective(key); ok {
		return e
	}
	if e, ok := d.previous[key]; ok {
		return e
	}
	return nil
}

// Commit folds this delta's journal into its parent (post-images win by
// key) and finalizes it. Committing a root delta just finalizes it: its
// effects are already durable through the store's transaction scope.
func (d *Delta) Commit() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if d.parent != nil {
		if err := d.parent.checkOpen(); err != nil {
			return err
		}
		d.parent.merge(d)
	}
	d.state = Committed
	return nil
}

// Discard drops all recorded effects and finalizes the delta. The parent
// and everything else in the system are left untouched.
func (d *Delta) Discard() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.state = Discarded
	return nil
}

// merge folds child state into d. Child post-images win; pre-images are
// kept only for keys d has not already captured.
func (d *Delta) merge(child *Delta) {
	// Walk the child's first-touch order, not its maps, so the parent's
	// collapsed view stays deterministic after the fold.
	for _, key := range child.order {
		if _, ok := d.previous[key]; !ok {
			d.previous[key] = child.previous[key]
			d.touch(key)
		}
	}

	for key, e := range child.created {
		if _, ok := d.deleted[key]; ok {
			delete(d.deleted, key)
			d.updated[key] = e
			continue
		}
		if _, ok := d.updated[key]; ok {
			d.updated[key] = e
			continue
		}
		d.created[key] = e
	}

	for key, e := range child.updated {
		if _, ok := d.created[key]; ok {
			d.created[key] = e
			continue
		}
		d.updated[key] = e
	}

	for key, k := range child.deleted {
		if _, ok := d.created[key]; ok {
			// Created in this delta, deleted by the child: net nothing.
			delete(d.created, key)
			continue
		}
		delete(d.updated, key)
		d.deleted[key] = k
	}

	d.journal = append(d.journal, child.journal...)
}

// Changes returns the collapsed change list in first-touch order: one
// element per touched key with its pre-delta pre-image and latest
// post-image. Read-only snapshots (ChangeState) appear only for keys with
// no mutation.
func (d *Delta) Changes() []Change {
	changes := make([]Change, 0, len(d.order))
	for _, key := range d.order {
		prev := d.previous[key]
		if k, ok := d.deleted[key]; ok {
			changes = append(changes, Change{Type: ChangeRemoved, Key: k, Previous: prev.Clone()})
			continue
		}
		if e, ok := d.created[key]; ok {
			changes = append(changes, Change{Type: ChangeCreated, Key: e.Key(), Current: e.Clone()})
			continue
		}
		if e, ok := d.updated[key]; ok {
			changes = append(changes, Change{
				Type:     ChangeUpdated,
				Key:      e.Key(),
				Previous: prev.Clone(),
				Current:  e.Clone(),
			})
			continue
		}
		if prev != nil {
			changes = append(changes, Change{Type: ChangeState, Key: prev.Key(), Current: prev.Clone()})
		}
	}
	return changes
}

// AllChanges returns the full uncollapsed journal in the order effects
// were recorded, including those of committed children.
func (d *Delta) AllChanges() []Change {
	out := make([]Change, len(d.journal))
	copy(out, d.journal)
	return out
}

// StateBefore returns the captured pre-images keyed by serialized record
// key. A nil value means the key did not exist before this delta.
func (d *Delta) StateBefore() map[string]*record.Entry {
	out := make(map[string]*record.Entry, len(d.previous))
	for k, e := range d.previous {
		out[k] = e.Clone()
	}
	return out
}
