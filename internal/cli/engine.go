package cli

import (
	"github.com/tidevault/ledger/internal/cache"
	"github.com/tidevault/ledger/internal/ledger"
	"github.com/tidevault/ledger/internal/store"
)

// engine bundles the handles a command needs against one ledger database.
type engine struct {
	cfg      *ledger.Config
	header   *ledger.Header
	store    *store.Store
	registry *store.Registry
}

// openEngine loads the config and opens the database it names.
// The caller owns the store and must Close it.
func openEngine(opts *RootOptions) (*engine, error) {
	cfg, err := ledger.LoadConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}

	c, err := cache.New(cfg.CacheCapacity)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "building cache", err)
	}

	header := cfg.Header()
	return &engine{
		cfg:      cfg,
		header:   header,
		store:    st,
		registry: store.NewRegistry(st, c, header),
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}
