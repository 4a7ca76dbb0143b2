package record

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestStatistics_AddAccumulatesAllWindows(t *testing.T) {
	s := &Statistics{AccountID: "acc-1", UpdatedAt: statsNow}

	require.True(t, s.Add(100, statsNow, statsNow))
	require.True(t, s.Add(50, statsNow, statsNow))

	assert.Equal(t, int64(150), s.DailyOutcome)
	assert.Equal(t, int64(150), s.WeeklyOutcome)
	assert.Equal(t, int64(150), s.MonthlyOutcome)
	assert.Equal(t, int64(150), s.AnnualOutcome)
}

func TestStatistics_RollsStaleWindows(t *testing.T) {
	s := &Statistics{
		AccountID:      "acc-1",
		DailyOutcome:   10,
		WeeklyOutcome:  20,
		MonthlyOutcome: 30,
		AnnualOutcome:  40,
		UpdatedAt:      statsNow,
	}

	// Next day, same week/month/year: only the daily bucket resets.
	nextDay := statsNow.Add(24 * time.Hour)
	require.True(t, s.Add(5, nextDay, nextDay))
	assert.Equal(t, int64(5), s.DailyOutcome)
	assert.Equal(t, int64(25), s.WeeklyOutcome)
	assert.Equal(t, int64(35), s.MonthlyOutcome)
	assert.Equal(t, int64(45), s.AnnualOutcome)

	// Next year resets everything.
	nextYear := statsNow.AddDate(1, 0, 0)
	require.True(t, s.Add(7, nextYear, nextYear))
	assert.Equal(t, int64(7), s.DailyOutcome)
	assert.Equal(t, int64(7), s.WeeklyOutcome)
	assert.Equal(t, int64(7), s.MonthlyOutcome)
	assert.Equal(t, int64(7), s.AnnualOutcome)
}

func TestStatistics_RevertAtOriginalTime(t *testing.T) {
	s := &Statistics{AccountID: "acc-1", UpdatedAt: statsNow}
	require.True(t, s.Add(100, statsNow, statsNow))

	// Two days later the daily (and possibly weekly) windows no longer
	// cover the original time; only the wider windows are reverted.
	later := statsNow.Add(48 * time.Hour)
	require.True(t, s.Add(-100, later, statsNow))

	assert.Equal(t, int64(0), s.DailyOutcome)
	assert.Equal(t, int64(0), s.MonthlyOutcome)
	assert.Equal(t, int64(0), s.AnnualOutcome)
}

func TestStatistics_RevertDrivesBucketNegative(t *testing.T) {
	// No floor at zero: reverting more than the bucket holds is accepted.
	s := &Statistics{AccountID: "acc-1", DailyOutcome: 10, UpdatedAt: statsNow}
	require.True(t, s.Add(-50, statsNow, statsNow))
	assert.Equal(t, int64(-40), s.DailyOutcome)
}

func TestStatistics_OverflowLeavesStateUntouched(t *testing.T) {
	s := &Statistics{
		AccountID:     "acc-1",
		DailyOutcome:  5,
		AnnualOutcome: math.MaxInt64,
		UpdatedAt:     statsNow,
	}

	require.False(t, s.Add(10, statsNow, statsNow))
	// The daily bucket would have accepted the add; overflow in the
	// annual bucket must roll everything back.
	assert.Equal(t, int64(5), s.DailyOutcome)
	assert.Equal(t, int64(math.MaxInt64), s.AnnualOutcome)
}
