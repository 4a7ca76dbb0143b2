package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidevault/ledger/internal/record"
)

func testEntry(id string, amount int64) *record.Entry {
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

func TestEntryCache_MissVsNegative(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	key := record.BalanceKey{BalanceID: "bal-1"}

	// Unknown key: a miss, not an absence.
	e, cached := c.Get(key)
	assert.False(t, cached)
	assert.Nil(t, e)

	// Verified absence: cached, nil entry.
	c.PutNegative(key)
	e, cached = c.Get(key)
	assert.True(t, cached)
	assert.Nil(t, e)
	assert.False(t, c.Exists(key))
}

func TestEntryCache_PutGet(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	key := record.BalanceKey{BalanceID: "bal-1"}
	c.Put(key, testEntry("bal-1", 100))

	e, cached := c.Get(key)
	require.True(t, cached)
	require.NotNil(t, e)
	assert.Equal(t, int64(100), e.Body.(*record.Balance).Amount)
	assert.True(t, c.Exists(key))
}

func TestEntryCache_GetReturnsClone(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	key := record.BalanceKey{BalanceID: "bal-1"}
	orig := testEntry("bal-1", 100)
	c.Put(key, orig)

	// Mutating the original after Put must not reach the cache.
	orig.Body.(*record.Balance).Amount = 1

	e, _ := c.Get(key)
	require.NotNil(t, e)
	assert.Equal(t, int64(100), e.Body.(*record.Balance).Amount)

	// Mutating a Get result must not reach later readers.
	e.Body.(*record.Balance).Amount = 2
	again, _ := c.Get(key)
	assert.Equal(t, int64(100), again.Body.(*record.Balance).Amount)
}

func TestEntryCache_Invalidate(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	key := record.BalanceKey{BalanceID: "bal-1"}
	c.Put(key, testEntry("bal-1", 100))
	c.Invalidate(key)

	_, cached := c.Get(key)
	assert.False(t, cached)

	// Idempotent.
	c.Invalidate(key)
}

func TestEntryCache_EvictsLRU(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("bal-%d", i)
		c.Put(record.BalanceKey{BalanceID: id}, testEntry(id, int64(i)))
	}

	assert.Equal(t, 2, c.Len())
	_, cached := c.Get(record.BalanceKey{BalanceID: "bal-0"})
	assert.False(t, cached)
}

func TestEntryCache_Purge(t *testing.T) {
	c, err := New(16)
	require.NoError(t, err)

	c.Put(record.BalanceKey{BalanceID: "bal-1"}, testEntry("bal-1", 1))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
