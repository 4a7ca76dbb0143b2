// Package testutil provides shared fixtures for engine tests: a
// deterministic ledger header and a fully wired in-memory database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidevault/ledger/internal/cache"
	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/ledger"
	"github.com/tidevault/ledger/internal/record"
	"github.com/tidevault/ledger/internal/store"
)

// CloseTime is the fixed ledger close time tests run at.
var CloseTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// Header returns a deterministic ledger header positioned at sequence 1
// with both features on.
func Header() *ledger.Header {
	return &ledger.Header{
		Seq:       1,
		CloseTime: CloseTime,
		Version:   1,
		Features: ledger.Features{
			FeeExtension:    true,
			DetailedChanges: true,
		},
	}
}

// Engine is a fully wired engine against an in-memory database.
type Engine struct {
	Store    *store.Store
	Cache    *cache.EntryCache
	Registry *store.Registry
	Header   *ledger.Header
}

// NewEngine opens an in-memory database with the schema applied and wires
// the cache and registry around it. The store closes with the test.
func NewEngine(t *testing.T) *Engine {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c, err := cache.New(cache.DefaultCapacity)
	require.NoError(t, err)

	header := Header()
	return &Engine{
		Store:    st,
		Cache:    c,
		Registry: store.NewRegistry(st, c, header),
		Header:   header,
	}
}

// MustAdd inserts a record outside any transaction scope, failing the
// test on error.
func (e *Engine) MustAdd(t *testing.T, body record.Body) {
	t.Helper()

	d := delta.New()
	err := e.Registry.Add(context.Background(), e.Store.Base(), d, &record.Entry{Body: body})
	require.NoError(t, err)
	require.NoError(t, d.Commit())
}
