package ledger

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
)

//go:embed config.cue
var configSchema string

// Config is the process configuration: where the ledger database lives
// and the knobs the pipeline and account manager read. Loaded from YAML
// and validated against the embedded CUE schema before use.
type Config struct {
	DatabasePath      string         `json:"database_path"`
	CacheCapacity     int            `json:"cache_capacity"`
	LedgerVersion     uint32         `json:"ledger_version"`
	StatsAsset        string         `json:"stats_asset"`
	CommissionAccount string         `json:"commission_account"`
	TxExpiration      int64          `json:"tx_expiration"`
	Features          FeaturesConfig `json:"features"`
	DefaultLimits     []LimitsConfig `json:"default_limits"`
}

type FeaturesConfig struct {
	FeeExtension    bool `json:"fee_extension"`
	DetailedChanges bool `json:"detailed_changes"`
}

// LimitsConfig is one account type's default outflow caps. Values seed
// the account_type_limits table on provisioning.
type LimitsConfig struct {
	AccountType int   `json:"account_type"`
	DailyOut    int64 `json:"daily_out"`
	WeeklyOut   int64 `json:"weekly_out"`
	MonthlyOut  int64 `json:"monthly_out"`
	AnnualOut   int64 `json:"annual_out"`
}

// LoadConfig reads the YAML file at path, unifies it with the embedded
// schema, and decodes the validated result. Schema violations surface as
// bad-config errors with the CUE diagnostic attached.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(path, data)
}

// ParseConfig validates and decodes raw YAML config bytes. The filename
// is used in diagnostics only.
func ParseConfig(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return nil, badConfig("parse yaml: %v", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return nil, badConfig("build config: %v", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, badConfig("validate config: %v", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, badConfig("decode config: %v", err)
	}
	return &cfg, nil
}

func badConfig(format string, args ...any) error {
	return errs.Validation(errs.CodeBadConfig, format, args...)
}

// Header builds a fresh ledger header at the configured version with the
// configured feature switches, positioned before the first sequence.
func (c *Config) Header() *Header {
	return &Header{
		Version: c.LedgerVersion,
		Features: Features{
			FeeExtension:    c.Features.FeeExtension,
			DetailedChanges: c.Features.DetailedChanges,
		},
	}
}

// TypeLimits converts the configured default limits into records keyed by
// account type.
func (c *Config) TypeLimits() []*record.AccountTypeLimits {
	out := make([]*record.AccountTypeLimits, 0, len(c.DefaultLimits))
	for _, l := range c.DefaultLimits {
		out = append(out, &record.AccountTypeLimits{
			AccountType: record.AccountType(l.AccountType),
			Limits: record.Limits{
				DailyOut:   l.DailyOut,
				WeeklyOut:  l.WeeklyOut,
				MonthlyOut: l.MonthlyOut,
				AnnualOut:  l.AnnualOut,
			},
		})
	}
	return out
}
