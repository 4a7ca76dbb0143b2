package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBalance(amount, locked int64) *Balance {
	return &Balance{
		BalanceID: "bal-1",
		AccountID: "acc-1",
		Asset:     "USD",
		Amount:    amount,
		Locked:    locked,
	}
}

func TestBalance_Lock(t *testing.T) {
	b := newBalance(100, 0)

	assert.Equal(t, BalanceOK, b.Lock(60))
	assert.Equal(t, int64(40), b.Amount)
	assert.Equal(t, int64(60), b.Locked)

	assert.Equal(t, BalanceUnderfunded, b.Lock(41))
	assert.Equal(t, int64(40), b.Amount)

	// Negative amount unlocks.
	assert.Equal(t, BalanceOK, b.Lock(-60))
	assert.Equal(t, int64(100), b.Amount)
	assert.Equal(t, int64(0), b.Locked)
}

func TestBalance_UnlockPastZeroIsLineFull(t *testing.T) {
	b := newBalance(0, 10)
	assert.Equal(t, BalanceLineFull, b.Lock(-11))
}

func TestBalance_LockOverflow(t *testing.T) {
	b := newBalance(1, math.MaxInt64)
	assert.Equal(t, BalanceLineFull, b.Lock(1))
}

func TestBalance_TryChargeAndFund(t *testing.T) {
	b := newBalance(100, 0)

	assert.True(t, b.TryCharge(100))
	assert.Equal(t, int64(0), b.Amount)
	assert.False(t, b.TryCharge(1))
	assert.False(t, b.TryCharge(-1))

	assert.True(t, b.TryFund(50))
	assert.Equal(t, int64(50), b.Amount)
	assert.False(t, b.TryFund(math.MaxInt64))
}

func TestBalance_Validate(t *testing.T) {
	assert.NoError(t, newBalance(0, 0).Validate())

	b := newBalance(-1, 0)
	assert.Error(t, b.Validate())

	b = newBalance(0, 0)
	b.Asset = ""
	assert.Error(t, b.Validate())
}

func TestFee_AppliesTo(t *testing.T) {
	f := &Fee{FeeType: FeePayment, Asset: "USD", LowerBound: 10, UpperBound: 100}
	assert.False(t, f.AppliesTo(9))
	assert.True(t, f.AppliesTo(10))
	assert.True(t, f.AppliesTo(100))
	assert.False(t, f.AppliesTo(101))

	// Zero upper bound is unbounded above.
	open := &Fee{FeeType: FeePayment, Asset: "USD", LowerBound: 0, UpperBound: 0}
	assert.True(t, open.AppliesTo(math.MaxInt64))
}
