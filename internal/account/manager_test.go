package account

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/record"
	"github.com/tidevault/ledger/internal/testutil"
)

type managerFixture struct {
	*testutil.Engine
	manager *Manager
}

func newManagerFixture(t *testing.T, statsAsset string) *managerFixture {
	t.Helper()
	e := testutil.NewEngine(t)
	return &managerFixture{
		Engine:  e,
		manager: NewManager(e.Registry, e.Header, statsAsset, nil),
	}
}

func (f *managerFixture) setPrice(t *testing.T, asset string, price uint64) {
	t.Helper()
	f.MustAdd(t, &record.KeyValue{
		EntryKey:  PriceKeyPrefix + asset,
		ValueType: record.KeyValueUint64,
		Uint64Val: price,
	})
}

func (f *managerFixture) loadBalance(t *testing.T, balanceID string) *record.Entry {
	t.Helper()
	e, err := f.Registry.Load(context.Background(), f.Store.Base(),
		record.BalanceKey{BalanceID: balanceID}, nil)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e
}

func (f *managerFixture) loadStats(t *testing.T, accountID string) *record.Statistics {
	t.Helper()
	e, err := f.Registry.Load(context.Background(), f.Store.Base(),
		record.StatisticsKey{AccountID: accountID}, nil)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e.Body.(*record.Statistics)
}

func TestManager_ProcessTransfer_Charge(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "USD", Amount: 1000})
	f.MustAdd(t, &record.Statistics{AccountID: "acc-1", UpdatedAt: testutil.CloseTime})
	f.setPrice(t, "USD", 2*record.One)

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 100, false, false)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Equal(t, int64(200), universal)
	require.NoError(t, d.Commit())

	body := f.loadBalance(t, "bal-1").Body.(*record.Balance)
	assert.Equal(t, int64(900), body.Amount)
	assert.Zero(t, body.Locked)

	stats := f.loadStats(t, "acc-1")
	assert.Equal(t, int64(200), stats.DailyOutcome)
	assert.Equal(t, int64(200), stats.AnnualOutcome)
}

func TestManager_ProcessTransfer_Lock(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 500})
	f.MustAdd(t, &record.Statistics{AccountID: "acc-1", UpdatedAt: testutil.CloseTime})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 300, true, false)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Equal(t, int64(300), universal)

	body := f.loadBalance(t, "bal-1").Body.(*record.Balance)
	assert.Equal(t, int64(200), body.Amount)
	assert.Equal(t, int64(300), body.Locked)
}

func TestManager_ProcessTransfer_Underfunded(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 50})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, _, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, 100, false, false)
	require.NoError(t, err)
	assert.Equal(t, Underfunded, res)
	assert.Empty(t, d.Changes())
}

func TestManager_ProcessTransfer_LineFull(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{
		BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI",
		Amount: 100, Locked: math.MaxInt64 - 5,
	})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, _, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, 10, true, false)
	require.NoError(t, err)
	assert.Equal(t, LineFull, res)
}

func TestManager_ProcessTransfer_LimitsExceeded(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 1000})
	f.MustAdd(t, &record.Statistics{AccountID: "acc-1", UpdatedAt: testutil.CloseTime})
	f.MustAdd(t, &record.AccountTypeLimits{
		AccountType: record.AccountGeneral,
		Limits:      record.Limits{DailyOut: 100, WeeklyOut: 1000, MonthlyOut: 1000, AnnualOut: 1000},
	})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 150, false, false)
	require.NoError(t, err)
	assert.Equal(t, LimitsExceeded, res)
	assert.Zero(t, universal)

	// Nothing was written.
	assert.Equal(t, int64(1000), f.loadBalance(t, "bal-1").Body.(*record.Balance).Amount)
	assert.Zero(t, f.loadStats(t, "acc-1").DailyOutcome)

	// The same transfer passes when limits are ignored.
	d = delta.New()
	balance = f.loadBalance(t, "bal-1")
	res, universal, err = f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 150, false, true)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Equal(t, int64(150), universal)
}

func TestManager_ProcessTransfer_AccountLimitsOverrideTypeLimits(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 1000})
	f.MustAdd(t, &record.Statistics{AccountID: "acc-1", UpdatedAt: testutil.CloseTime})
	f.MustAdd(t, &record.AccountTypeLimits{
		AccountType: record.AccountGeneral,
		Limits:      record.Limits{DailyOut: 10, WeeklyOut: 10, MonthlyOut: 10, AnnualOut: 10},
	})
	f.MustAdd(t, &record.AccountLimits{
		AccountID: "acc-1",
		Limits:    record.UnboundedLimits(),
	})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, _, err := f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 500, false, false)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
}

func TestManager_ProcessTransfer_SystemAccountSkipsStats(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	acc := &record.Account{AccountID: "master", AccountType: record.AccountMaster, Thresholds: 1}
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "master", Asset: "UNI", Amount: 1000})
	// No statistics row exists for the system account.

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, 100, false, false)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Zero(t, universal)
}

func TestManager_ProcessTransfer_UntrackedAsset(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "OBSCURE", Amount: 1000})
	// No price published for OBSCURE: the outflow is charged but untracked.

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, 100, false, false)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Zero(t, universal)
}

func TestManager_ProcessTransfer_ConversionOverflow(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{
		BalanceID: "bal-1", AccountID: "acc-1", Asset: "USD", Amount: math.MaxInt64,
	})
	f.setPrice(t, "USD", uint64(record.One)*1000)

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, _, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, math.MaxInt64, false, false)
	require.NoError(t, err)
	assert.Equal(t, StatsOverflow, res)
}

func TestManager_ProcessTransfer_MissingStatsIsFatal(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 1000})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	_, _, err := f.manager.ProcessTransfer(context.Background(), f.Store.Base(), d,
		acc, balance, 100, false, false)
	require.Error(t, err)
	assert.True(t, errs.IsStorageInconsistency(err))
	assert.True(t, errs.HasCode(err, errs.CodeMissingRecord))
}

func TestManager_RevertRequest(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 1000})
	f.MustAdd(t, &record.Statistics{AccountID: "acc-1", UpdatedAt: testutil.CloseTime})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	res, universal, err := f.manager.ProcessTransfer(ctx, sc, d, acc, balance, 300, true, false)
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.NoError(t, d.Commit())

	d = delta.New()
	balance = f.loadBalance(t, "bal-1")
	err = f.manager.RevertRequest(ctx, sc, d, acc, balance, 300, universal, testutil.CloseTime)
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	body := f.loadBalance(t, "bal-1").Body.(*record.Balance)
	assert.Equal(t, int64(1000), body.Amount)
	assert.Zero(t, body.Locked)

	stats := f.loadStats(t, "acc-1")
	assert.Zero(t, stats.DailyOutcome)
	assert.Zero(t, stats.AnnualOutcome)
}

func TestManager_RevertRequest_AfterRolloverGoesNegative(t *testing.T) {
	f := newManagerFixture(t, "UNI")
	ctx := context.Background()
	sc := f.Store.Base()

	performedAt := testutil.CloseTime.AddDate(0, 0, -10)

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, acc)
	f.MustAdd(t, &record.Balance{
		BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 700, Locked: 300,
	})
	// The daily and weekly windows rolled since the original transfer; only
	// the monthly and annual buckets still carry its amount.
	f.MustAdd(t, &record.Statistics{
		AccountID: "acc-1", MonthlyOutcome: 50, AnnualOutcome: 50,
		UpdatedAt: testutil.CloseTime,
	})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	err := f.manager.RevertRequest(ctx, sc, d, acc, balance, 300, 300, performedAt)
	require.NoError(t, err)
	require.NoError(t, d.Commit())

	stats := f.loadStats(t, "acc-1")
	assert.Zero(t, stats.DailyOutcome)
	assert.Zero(t, stats.WeeklyOutcome)
	assert.Equal(t, int64(-250), stats.MonthlyOutcome)
	assert.Equal(t, int64(-250), stats.AnnualOutcome)
}

func TestManager_RevertRequest_UnlockFailureIsFatal(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	acc := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}
	f.MustAdd(t, &record.Balance{
		BalanceID: "bal-1", AccountID: "acc-1", Asset: "UNI", Amount: 100, Locked: 10,
	})

	d := delta.New()
	balance := f.loadBalance(t, "bal-1")
	err := f.manager.RevertRequest(context.Background(), f.Store.Base(), d,
		acc, balance, 50, 50, testutil.CloseTime)
	require.Error(t, err)
	assert.True(t, errs.IsStorageInconsistency(err))
	assert.True(t, errs.HasCode(err, errs.CodeOverflow))
}

func TestManager_IsFeeMatches(t *testing.T) {
	f := newManagerFixture(t, "")
	ctx := context.Background()
	sc := f.Store.Base()

	f.MustAdd(t, &record.Fee{
		FeeType: record.FeePayment, Asset: "USD", Subtype: 0,
		Fixed: 5, Percent: record.One, LowerBound: 0, UpperBound: 0,
	})

	general := &record.Account{AccountID: "acc-1", AccountType: record.AccountGeneral, Thresholds: 1}

	t.Run("fixed plus percent", func(t *testing.T) {
		// 1% of 10000 is 100, plus a fixed 5.
		ok, err := f.manager.IsFeeMatches(ctx, sc, general, 105, record.FeePayment, 0, "USD", 10000)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.manager.IsFeeMatches(ctx, sc, general, 104, record.FeePayment, 0, "USD", 10000)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unconfigured fee means zero", func(t *testing.T) {
		ok, err := f.manager.IsFeeMatches(ctx, sc, general, 0, record.FeeWithdrawal, 0, "USD", 10000)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.manager.IsFeeMatches(ctx, sc, general, 1, record.FeeWithdrawal, 0, "USD", 10000)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("system accounts are exempt", func(t *testing.T) {
		master := &record.Account{AccountID: "master", AccountType: record.AccountMaster, Thresholds: 1}
		ok, err := f.manager.IsFeeMatches(ctx, sc, master, 0, record.FeePayment, 0, "USD", 10000)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.manager.IsFeeMatches(ctx, sc, master, 105, record.FeePayment, 0, "USD", 10000)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestManager_CreateStats(t *testing.T) {
	f := newManagerFixture(t, "UNI")

	d := delta.New()
	require.NoError(t, f.manager.CreateStats(context.Background(), f.Store.Base(), d, "acc-1"))

	stats := f.loadStats(t, "acc-1")
	assert.Zero(t, stats.DailyOutcome)
	assert.Equal(t, testutil.CloseTime, stats.UpdatedAt)
}
