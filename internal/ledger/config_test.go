package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig("ledger.yaml", []byte(`
database_path: /var/lib/ledger/ledger.db
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ledger/ledger.db", cfg.DatabasePath)
	assert.Equal(t, 4096, cfg.CacheCapacity)
	assert.Equal(t, uint32(1), cfg.LedgerVersion)
	assert.Equal(t, int64(604800), cfg.TxExpiration)
	assert.True(t, cfg.Features.FeeExtension)
	assert.False(t, cfg.Features.DetailedChanges)
	assert.Empty(t, cfg.DefaultLimits)
}

func TestParseConfig_Full(t *testing.T) {
	cfg, err := ParseConfig("ledger.yaml", []byte(`
database_path: ledger.db
cache_capacity: 128
stats_asset: USD
commission_account: commission
tx_expiration: 3600
features:
  fee_extension: false
  detailed_changes: true
default_limits:
  - account_type: 2
    daily_out: 100
    weekly_out: 200
    monthly_out: 300
    annual_out: 400
`))
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.CacheCapacity)
	assert.Equal(t, "USD", cfg.StatsAsset)
	assert.False(t, cfg.Features.FeeExtension)
	assert.True(t, cfg.Features.DetailedChanges)

	limits := cfg.TypeLimits()
	require.Len(t, limits, 1)
	assert.Equal(t, record.AccountType(2), limits[0].AccountType)
	assert.Equal(t, int64(100), limits[0].Limits.DailyOut)
	assert.Equal(t, int64(400), limits[0].Limits.AnnualOut)
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing database path", `cache_capacity: 10`},
		{"empty database path", `database_path: ""`},
		{"negative expiration", "database_path: ledger.db\ntx_expiration: -1"},
		{"zero capacity", "database_path: ledger.db\ncache_capacity: 0"},
		{"bad limits entry", "database_path: ledger.db\ndefault_limits:\n  - account_type: 0\n    daily_out: 1\n    weekly_out: 1\n    monthly_out: 1\n    annual_out: 1"},
		{"not yaml", `{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig("ledger.yaml", []byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeBadConfig))
		})
	}
}

func TestConfig_Header(t *testing.T) {
	cfg := &Config{LedgerVersion: 3, Features: FeaturesConfig{FeeExtension: true}}
	h := cfg.Header()

	assert.Equal(t, uint64(0), h.Sequence())
	assert.Equal(t, uint32(3), h.Version)
	assert.True(t, h.Features.FeeExtension)
	assert.False(t, h.Features.DetailedChanges)
}
