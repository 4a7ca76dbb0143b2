package record

import "fmt"

// FeeType partitions the fee table by the kind of action being charged.
type FeeType int

const (
	FeePayment FeeType = iota + 1
	FeeOffer
	FeeWithdrawal
	FeeIssuance
	FeeOperation
)

// Fee is one row of the fee table: the fixed and percent components
// charged for a (fee type, asset, subtype) combination within an amount
// band.
type Fee struct {
	FeeType    FeeType
	Asset      string
	Subtype    int64
	Fixed      int64
	Percent    int64
	LowerBound int64
	UpperBound int64
}

// FeeKey keys fee rows by type, asset, and subtype.
type FeeKey struct {
	FeeType FeeType
	Asset   string
	Subtype int64
}

func (k FeeKey) Type() EntryType { return TypeFee }

func (k FeeKey) canonicalFields() map[string]any {
	return map[string]any{
		"fee_type": int64(k.FeeType),
		"asset":    k.Asset,
		"subtype":  k.Subtype,
	}
}

func (f *Fee) Type() EntryType { return TypeFee }

func (f *Fee) Key() Key {
	return FeeKey{FeeType: f.FeeType, Asset: f.Asset, Subtype: f.Subtype}
}

func (f *Fee) Validate() error {
	if f.Asset == "" {
		return fmt.Errorf("fee: empty asset code")
	}
	if f.Fixed < 0 || f.Percent < 0 {
		return fmt.Errorf("fee: negative fee component")
	}
	if f.LowerBound < 0 || (f.UpperBound != 0 && f.UpperBound < f.LowerBound) {
		return fmt.Errorf("fee: invalid amount band [%d, %d]", f.LowerBound, f.UpperBound)
	}
	return nil
}

func (f *Fee) CloneBody() Body {
	c := *f
	return &c
}

// AppliesTo reports whether the fee row's amount band covers amount.
// An UpperBound of zero means unbounded above.
func (f *Fee) AppliesTo(amount int64) bool {
	if amount < f.LowerBound {
		return false
	}
	return f.UpperBound == 0 || amount <= f.UpperBound
}

// CalculatePercent computes the percent component for amount, rounded per
// the given mode. Returns false on overflow; an overflowing fee never
// matches.
func (f *Fee) CalculatePercent(amount int64, round Rounding) (int64, bool) {
	if f.Percent == 0 {
		return 0, true
	}
	return PercentFee(amount, f.Percent, round)
}
