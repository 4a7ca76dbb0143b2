package record

import "fmt"

// BalanceResult reports the outcome of a balance mutation.
type BalanceResult int

const (
	BalanceOK BalanceResult = iota
	BalanceUnderfunded
	BalanceLineFull
)

// Balance holds one account's funds in one asset, split between the
// freely spendable Amount and the Locked portion pending review.
type Balance struct {
	BalanceID string
	AccountID string
	Asset     string
	Amount    int64
	Locked    int64
}

// BalanceKey keys balances by their id.
type BalanceKey struct {
	BalanceID string
}

func (k BalanceKey) Type() EntryType { return TypeBalance }

func (k BalanceKey) canonicalFields() map[string]any {
	return map[string]any{"balance_id": k.BalanceID}
}

func (b *Balance) Type() EntryType { return TypeBalance }

func (b *Balance) Key() Key { return BalanceKey{BalanceID: b.BalanceID} }

func (b *Balance) Validate() error {
	if b.BalanceID == "" || b.AccountID == "" {
		return fmt.Errorf("balance: empty id")
	}
	if b.Asset == "" {
		return fmt.Errorf("balance: empty asset code")
	}
	if b.Amount < 0 || b.Locked < 0 {
		return fmt.Errorf("balance: negative amount")
	}
	return nil
}

func (b *Balance) CloneBody() Body {
	c := *b
	return &c
}

// AddAmount adds delta (which may be negative) to the spendable amount.
// Returns false when the result would go negative or overflow.
func (b *Balance) AddAmount(delta int64) bool {
	next, ok := SafeAdd(b.Amount, delta)
	if !ok || next < 0 {
		return false
	}
	b.Amount = next
	return true
}

// Lock moves amount from spendable to locked, pending review.
// A negative amount unlocks (revert path).
func (b *Balance) Lock(amount int64) BalanceResult {
	nextLocked, ok := SafeAdd(b.Locked, amount)
	if !ok || nextLocked < 0 {
		return BalanceLineFull
	}
	nextAmount, ok := SafeAdd(b.Amount, -amount)
	if !ok {
		return BalanceLineFull
	}
	if nextAmount < 0 {
		return BalanceUnderfunded
	}
	b.Locked = nextLocked
	b.Amount = nextAmount
	return BalanceOK
}

// TryCharge debits amount from the spendable balance.
func (b *Balance) TryCharge(amount int64) bool {
	if amount < 0 {
		return false
	}
	return b.AddAmount(-amount)
}

// TryFund credits amount to the spendable balance.
func (b *Balance) TryFund(amount int64) bool {
	if amount < 0 {
		return false
	}
	return b.AddAmount(amount)
}
