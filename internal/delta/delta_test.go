package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

func balanceEntry(id string, amount int64) *record.Entry {
	return &record.Entry{
		LastModified: 1,
		Body: &record.Balance{
			BalanceID: id,
			AccountID: "acc-1",
			Asset:     "USD",
			Amount:    amount,
		},
	}
}

func TestDelta_AddThenChanges(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(balanceEntry("bal-1", 100)))

	changes := d.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeCreated, changes[0].Type)
	assert.Nil(t, changes[0].Previous)
	assert.Equal(t, int64(100), changes[0].Current.Body.(*record.Balance).Amount)
}

func TestDelta_DoubleAddFails(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(balanceEntry("bal-1", 100)))

	err := d.AddEntry(balanceEntry("bal-1", 200))
	require.Error(t, err)
	assert.True(t, errs.IsStorageInconsistency(err))
}

func TestDelta_ModCollapsesToLatest(t *testing.T) {
	d := New()
	require.NoError(t, d.RecordEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, d.ModEntry(balanceEntry("bal-1", 80)))
	require.NoError(t, d.ModEntry(balanceEntry("bal-1", 60)))

	changes := d.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpdated, changes[0].Type)
	assert.Equal(t, int64(100), changes[0].Previous.Body.(*record.Balance).Amount)
	assert.Equal(t, int64(60), changes[0].Current.Body.(*record.Balance).Amount)

	// The full journal keeps both mutations.
	assert.Len(t, d.AllChanges(), 3)
}

func TestDelta_CreateThenDeleteIsNetNothing(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, d.DeleteEntry(record.BalanceKey{BalanceID: "bal-1"}))

	changes := d.Changes()
	for _, ch := range changes {
		assert.NotEqual(t, ChangeCreated, ch.Type)
		assert.NotEqual(t, ChangeRemoved, ch.Type)
	}
}

func TestDelta_DeleteThenRecreateIsUpdate(t *testing.T) {
	d := New()
	require.NoError(t, d.RecordEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, d.DeleteEntry(record.BalanceKey{BalanceID: "bal-1"}))
	require.NoError(t, d.AddEntry(balanceEntry("bal-1", 50)))

	changes := d.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpdated, changes[0].Type)
	assert.Equal(t, int64(100), changes[0].Previous.Body.(*record.Balance).Amount)
	assert.Equal(t, int64(50), changes[0].Current.Body.(*record.Balance).Amount)
}

func TestDelta_ChildCommitFoldsIntoParent(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RecordEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, parent.ModEntry(balanceEntry("bal-1", 90)))

	child := parent.NewChild()
	require.NoError(t, child.ModEntry(balanceEntry("bal-1", 70)))
	require.NoError(t, child.AddEntry(balanceEntry("bal-2", 10)))
	require.NoError(t, child.Commit())

	changes := parent.Changes()
	require.Len(t, changes, 2)
	// Pre-image stays the parent's first capture; post-image is the child's.
	assert.Equal(t, int64(100), changes[0].Previous.Body.(*record.Balance).Amount)
	assert.Equal(t, int64(70), changes[0].Current.Body.(*record.Balance).Amount)
	assert.Equal(t, ChangeCreated, changes[1].Type)
}

func TestDelta_ChildDiscardLeavesParentUntouched(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RecordEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, parent.ModEntry(balanceEntry("bal-1", 90)))

	child := parent.NewChild()
	require.NoError(t, child.ModEntry(balanceEntry("bal-1", 10)))
	require.NoError(t, child.Discard())

	changes := parent.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, int64(90), changes[0].Current.Body.(*record.Balance).Amount)
}

func TestDelta_ChildObservesParentState(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RecordEntry(balanceEntry("bal-1", 100)))
	require.NoError(t, parent.ModEntry(balanceEntry("bal-1", 90)))

	child := parent.NewChild()
	require.NoError(t, child.ModEntry(balanceEntry("bal-1", 80)))

	changes := child.Changes()
	require.Len(t, changes, 1)
	// The child's pre-image is the parent's post-image, not the original.
	assert.Equal(t, int64(90), changes[0].Previous.Body.(*record.Balance).Amount)
}

func TestDelta_ChildCommitKeepsFirstTouchOrder(t *testing.T) {
	ids := []string{"m", "c", "x", "a", "t", "k", "e", "q", "b", "z", "f", "i"}

	parent := New()
	child := parent.NewChild()
	for i, id := range ids {
		require.NoError(t, child.AddEntry(balanceEntry(id, int64(i))))
	}
	require.NoError(t, child.Commit())

	changes := parent.Changes()
	require.Len(t, changes, len(ids))
	for i, ch := range changes {
		assert.Equal(t, ids[i], ch.Current.Body.(*record.Balance).BalanceID)
	}
}

func TestDelta_UseAfterFinalize(t *testing.T) {
	for _, tc := range []struct {
		name     string
		finalize func(d *Delta) error
	}{
		{"commit", func(d *Delta) error { return d.Commit() }},
		{"discard", func(d *Delta) error { return d.Discard() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New()
			require.NoError(t, tc.finalize(d))

			err := d.AddEntry(balanceEntry("bal-1", 100))
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeUseAfterFinalize))

			assert.Error(t, tc.finalize(d))
		})
	}
}

func TestDelta_CommitIntoFinalizedParentFails(t *testing.T) {
	parent := New()
	child := parent.NewChild()
	require.NoError(t, parent.Discard())

	err := child.Commit()
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeUseAfterFinalize))
}

func TestDelta_ChangesFirstTouchOrder(t *testing.T) {
	d := New()
	require.NoError(t, d.AddEntry(balanceEntry("bal-2", 2)))
	require.NoError(t, d.AddEntry(balanceEntry("bal-1", 1)))
	require.NoError(t, d.ModEntry(balanceEntry("bal-2", 20)))

	changes := d.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "bal-2", changes[0].Current.Body.(*record.Balance).BalanceID)
	assert.Equal(t, "bal-1", changes[1].Current.Body.(*record.Balance).BalanceID)
}
