package record

import (
	"fmt"
	"time"
)

// Sale is an offering of a base asset priced in a quote asset, capped
// between a soft and hard cap, accumulating the quote amount raised so
// far in CurrentCap.
type Sale struct {
	ID           uint64
	OwnerID      string
	BaseAsset    string
	QuoteAsset   string
	StartTime    time.Time
	EndTime      time.Time
	Price        int64
	SoftCap      int64
	HardCap      int64
	CurrentCap   int64
	BaseBalance  string
	QuoteBalance string
	Details      string
}

// SaleKey keys sales by numeric id.
type SaleKey struct {
	ID uint64
}

func (k SaleKey) Type() EntryType { return TypeSale }

func (k SaleKey) canonicalFields() map[string]any {
	return map[string]any{"id": k.ID}
}

func (s *Sale) Type() EntryType { return TypeSale }

func (s *Sale) Key() Key { return SaleKey{ID: s.ID} }

func (s *Sale) Validate() error {
	if s.ID == 0 {
		return fmt.Errorf("sale: zero id")
	}
	if s.OwnerID == "" {
		return fmt.Errorf("sale: empty owner")
	}
	if s.BaseAsset == "" || s.QuoteAsset == "" {
		return fmt.Errorf("sale: empty asset code")
	}
	if s.Price <= 0 {
		return fmt.Errorf("sale: price must be positive, got %d", s.Price)
	}
	if s.SoftCap < 0 || s.HardCap < s.SoftCap {
		return fmt.Errorf("sale: invalid caps soft=%d hard=%d", s.SoftCap, s.HardCap)
	}
	if s.CurrentCap < 0 || s.CurrentCap > s.HardCap {
		return fmt.Errorf("sale: current cap %d outside [0, %d]", s.CurrentCap, s.HardCap)
	}
	if !s.EndTime.After(s.StartTime) {
		return fmt.Errorf("sale: end time not after start time")
	}
	return nil
}

func (s *Sale) CloneBody() Body {
	c := *s
	return &c
}

// TryRaise adds a quote amount to the current cap, refusing to exceed the
// hard cap or overflow.
func (s *Sale) TryRaise(quoteAmount int64) bool {
	next, ok := SafeAdd(s.CurrentCap, quoteAmount)
	if !ok || next < 0 || next > s.HardCap {
		return false
	}
	s.CurrentCap = next
	return true
}

// IsOpen reports whether the sale accepts participation at the given time.
func (s *Sale) IsOpen(at time.Time) bool {
	return !at.Before(s.StartTime) && at.Before(s.EndTime) && s.CurrentCap < s.HardCap
}
