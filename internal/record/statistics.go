package record

import (
	"fmt"
	"time"
)

// Statistics accumulates an account's universal-amount outflow over
// rolling daily, weekly, monthly, and annual windows. Buckets roll over
// lazily on the next Add: a bucket whose window no longer contains the
// current close time is reset before the new amount lands.
type Statistics struct {
	AccountID string

	DailyOutcome   int64
	WeeklyOutcome  int64
	MonthlyOutcome int64
	AnnualOutcome  int64

	// UpdatedAt is the close time of the last Add, used to detect
	// window rollover.
	UpdatedAt time.Time
}

// StatisticsKey keys statistics by account.
type StatisticsKey struct {
	AccountID string
}

func (k StatisticsKey) Type() EntryType { return TypeStatistics }

func (k StatisticsKey) canonicalFields() map[string]any {
	return map[string]any{"account_id": k.AccountID}
}

func (s *Statistics) Type() EntryType { return TypeStatistics }

func (s *Statistics) Key() Key { return StatisticsKey{AccountID: s.AccountID} }

func (s *Statistics) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("statistics: empty account id")
	}
	return nil
}

func (s *Statistics) CloneBody() Body {
	c := *s
	return &c
}

// Add rolls the windows forward to now and accumulates universal into
// every bucket whose window contains performedAt. Returns false on
// arithmetic overflow, leaving the statistics unchanged.
//
// universal may be negative (a revert). Buckets are deliberately not
// clamped at zero: a revert landing after the original bucket rolled over
// legitimately drives the bucket negative, and clamping would destroy
// audit information.
func (s *Statistics) Add(universal int64, now, performedAt time.Time) bool {
	now = now.UTC()
	performedAt = performedAt.UTC()

	rolled := *s
	if !sameDay(rolled.UpdatedAt, now) {
		rolled.DailyOutcome = 0
	}
	if !sameWeek(rolled.UpdatedAt, now) {
		rolled.WeeklyOutcome = 0
	}
	if !sameMonth(rolled.UpdatedAt, now) {
		rolled.MonthlyOutcome = 0
	}
	if !sameYear(rolled.UpdatedAt, now) {
		rolled.AnnualOutcome = 0
	}
	rolled.UpdatedAt = now

	var ok bool
	if sameDay(performedAt, now) {
		if rolled.DailyOutcome, ok = SafeAdd(rolled.DailyOutcome, universal); !ok {
			return false
		}
	}
	if sameWeek(performedAt, now) {
		if rolled.WeeklyOutcome, ok = SafeAdd(rolled.WeeklyOutcome, universal); !ok {
			return false
		}
	}
	if sameMonth(performedAt, now) {
		if rolled.MonthlyOutcome, ok = SafeAdd(rolled.MonthlyOutcome, universal); !ok {
			return false
		}
	}
	if sameYear(performedAt, now) {
		if rolled.AnnualOutcome, ok = SafeAdd(rolled.AnnualOutcome, universal); !ok {
			return false
		}
	}

	*s = rolled
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sameWeek(a, b time.Time) bool {
	ay, aw := a.UTC().ISOWeek()
	by, bw := b.UTC().ISOWeek()
	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}

func sameYear(a, b time.Time) bool {
	return a.UTC().Year() == b.UTC().Year()
}
