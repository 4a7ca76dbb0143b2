// Package account implements the business rules around account funds:
// transfers with rolling outflow statistics and limits, their reverts,
// and fee matching.
package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/ledger"
	"github.com/tidevault/ledger/internal/record"
	"github.com/tidevault/ledger/internal/store"
)

// Result is the business outcome of a transfer attempt. Business
// failures are values, not errors; errors are reserved for storage
// problems that must abort the apply.
type Result int

const (
	Success Result = iota
	Underfunded
	LineFull
	StatsOverflow
	LimitsExceeded
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Underfunded:
		return "underfunded"
	case LineFull:
		return "line_full"
	case StatsOverflow:
		return "stats_overflow"
	case LimitsExceeded:
		return "limits_exceeded"
	default:
		return "unknown"
	}
}

// PriceKeyPrefix is the key-value namespace holding per-asset prices in
// the universal asset, scaled by record.One.
const PriceKeyPrefix = "asset_price:"

// Manager applies transfer semantics on top of the record registry.
type Manager struct {
	registry   *store.Registry
	header     *ledger.Header
	statsAsset string
	log        *slog.Logger
}

func NewManager(registry *store.Registry, header *ledger.Header, statsAsset string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		registry:   registry,
		header:     header,
		statsAsset: statsAsset,
		log:        log,
	}
}

// ProcessTransfer moves amount out of the balance, either locking it
// pending review or charging it outright, then rolls the converted
// universal amount into the account's statistics and, unless ignoreLimits
// is set, checks them against the effective limits. The returned
// universal amount is what landed in statistics (zero when the asset is
// untracked); callers keep it for a later RevertRequest. Balance and
// statistics mutations land in d; on any non-Success result nothing is
// written.
func (m *Manager) ProcessTransfer(ctx context.Context, sc *store.Scope, d *delta.Delta,
	acc *record.Account, balance *record.Entry, amount int64,
	requireReview, ignoreLimits bool) (Result, int64, error) {

	body := balance.Body.(*record.Balance)
	if requireReview {
		switch body.Lock(amount) {
		case record.BalanceUnderfunded:
			return Underfunded, 0, nil
		case record.BalanceLineFull:
			return LineFull, 0, nil
		}
	} else {
		if !body.TryCharge(amount) {
			return Underfunded, 0, nil
		}
	}

	if acc.AccountType.IsSystem() {
		return Success, 0, m.registry.Change(ctx, sc, d, balance)
	}

	universal, tracked, err := m.toUniversal(ctx, sc, body.Asset, amount, d)
	if err != nil {
		return 0, 0, err
	}
	if !tracked {
		return Success, 0, m.registry.Change(ctx, sc, d, balance)
	}
	if universal < 0 {
		return StatsOverflow, 0, nil
	}

	now := m.header.CloseTime
	stats, err := m.mustLoadStats(ctx, sc, acc.AccountID, d)
	if err != nil {
		return 0, 0, err
	}
	statsBody := stats.Body.(*record.Statistics)
	if !statsBody.Add(universal, now, now) {
		return StatsOverflow, 0, nil
	}

	if !ignoreLimits {
		limits, err := m.effectiveLimits(ctx, sc, acc, d)
		if err != nil {
			return 0, 0, err
		}
		if exceedsLimits(statsBody, limits) {
			return LimitsExceeded, 0, nil
		}
	}

	if err := m.registry.Change(ctx, sc, d, balance); err != nil {
		return 0, 0, err
	}
	if err := m.registry.Change(ctx, sc, d, stats); err != nil {
		return 0, 0, err
	}

	m.log.Debug("transfer processed",
		"account", acc.AccountID, "asset", body.Asset,
		"amount", amount, "universal", universal, "locked", requireReview)
	return Success, universal, nil
}

// RevertRequest undoes a previously locked transfer: the locked portion
// returns to the spendable balance and universal (the amount the original
// transfer added) is subtracted from every statistics window still
// covering performedAt. Windows that rolled over since the original
// transfer are left alone; buckets are not clamped at zero, so a late
// revert legitimately drives them negative. A missing statistics row or
// an arithmetic failure here means earlier bookkeeping was corrupted and
// is fatal.
func (m *Manager) RevertRequest(ctx context.Context, sc *store.Scope, d *delta.Delta,
	acc *record.Account, balance *record.Entry, amount, universal int64, performedAt time.Time) error {

	body := balance.Body.(*record.Balance)
	if body.Lock(-amount) != record.BalanceOK {
		return errs.StorageInconsistency(errs.CodeOverflow,
			"revert of %d on balance %s does not unlock", amount, body.BalanceID)
	}

	if !acc.AccountType.IsSystem() && universal != 0 {
		stats, err := m.mustLoadStats(ctx, sc, acc.AccountID, d)
		if err != nil {
			return err
		}
		statsBody := stats.Body.(*record.Statistics)
		if !statsBody.Add(-universal, m.header.CloseTime, performedAt) {
			return errs.StorageInconsistency(errs.CodeOverflow,
				"statistics revert of %d for account %s overflows", universal, acc.AccountID)
		}
		if err := m.registry.Change(ctx, sc, d, stats); err != nil {
			return err
		}
	}

	return m.registry.Change(ctx, sc, d, balance)
}

// IsFeeMatches recomputes the fee the source should have declared and
// compares it with feeAmount. System accounts pay no fees; a fee amount
// of zero always matches them. An unconfigured fee row means zero fee.
func (m *Manager) IsFeeMatches(ctx context.Context, sc *store.Scope, acc *record.Account,
	feeAmount int64, feeType record.FeeType, subtype int64, asset string, amount int64) (bool, error) {

	if acc.AccountType.IsSystem() {
		return feeAmount == 0, nil
	}

	e, err := m.registry.LoadFeeForBand(ctx, sc, feeType, asset, subtype, amount, nil)
	if err != nil {
		return false, err
	}
	if e == nil {
		return feeAmount == 0, nil
	}

	fee := e.Body.(*record.Fee)
	percent, ok := fee.CalculatePercent(amount, record.RoundUp)
	if !ok {
		return false, nil
	}
	total, ok := record.SafeAdd(fee.Fixed, percent)
	if !ok {
		return false, nil
	}
	return feeAmount == total, nil
}

// CreateStats inserts a zeroed statistics row for the account. Every
// account gets one at creation; transfer processing treats a missing row
// as a storage inconsistency.
func (m *Manager) CreateStats(ctx context.Context, sc *store.Scope, d *delta.Delta, accountID string) error {
	return m.registry.Add(ctx, sc, d, &record.Entry{
		Body: &record.Statistics{
			AccountID: accountID,
			UpdatedAt: m.header.CloseTime.UTC(),
		},
	})
}

func (m *Manager) mustLoadStats(ctx context.Context, sc *store.Scope, accountID string, d *delta.Delta) (*record.Entry, error) {
	e, err := m.registry.Load(ctx, sc, record.StatisticsKey{AccountID: accountID}, d)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errs.StorageInconsistency(errs.CodeMissingRecord,
			"no statistics row for account %s", accountID)
	}
	return e, nil
}

// toUniversal converts amount of asset into the universal stats asset,
// rounding up. Returns tracked=false when stats tracking does not apply:
// no stats asset configured, or no price published for the asset. A
// conversion overflow comes back as a negative universal amount.
func (m *Manager) toUniversal(ctx context.Context, sc *store.Scope, asset string, amount int64, d *delta.Delta) (universal int64, tracked bool, err error) {
	if m.statsAsset == "" {
		return 0, false, nil
	}
	if asset == m.statsAsset {
		return amount, true, nil
	}

	e, err := m.registry.Load(ctx, sc, record.KeyValueKey{EntryKey: PriceKeyPrefix + asset}, d)
	if err != nil {
		return 0, false, err
	}
	if e == nil {
		m.log.Debug("no price for asset, outflow untracked", "asset", asset)
		return 0, false, nil
	}

	kv := e.Body.(*record.KeyValue)
	if kv.ValueType != record.KeyValueUint64 || kv.Uint64Val == 0 {
		return 0, false, nil
	}
	price := int64(kv.Uint64Val)

	u, ok := record.BigDivide(amount, price, record.One, record.RoundUp)
	if !ok {
		return -1, true, nil
	}
	return u, true, nil
}

// effectiveLimits resolves the limits chain: per-account overrides, then
// the account type's defaults, then unbounded.
func (m *Manager) effectiveLimits(ctx context.Context, sc *store.Scope, acc *record.Account, d *delta.Delta) (record.Limits, error) {
	e, err := m.registry.Load(ctx, sc, record.AccountLimitsKey{AccountID: acc.AccountID}, d)
	if err != nil {
		return record.Limits{}, err
	}
	if e != nil {
		return e.Body.(*record.AccountLimits).Limits, nil
	}

	e, err = m.registry.Load(ctx, sc, record.AccountTypeLimitsKey{AccountType: acc.AccountType}, d)
	if err != nil {
		return record.Limits{}, err
	}
	if e != nil {
		return e.Body.(*record.AccountTypeLimits).Limits, nil
	}

	return record.UnboundedLimits(), nil
}

func exceedsLimits(s *record.Statistics, l record.Limits) bool {
	return s.DailyOutcome > l.DailyOut ||
		s.WeeklyOutcome > l.WeeklyOut ||
		s.MonthlyOutcome > l.MonthlyOut ||
		s.AnnualOutcome > l.AnnualOut
}
