package record

import "fmt"

// AccountType partitions accounts into roles with distinct privileges
// and default limits.
type AccountType int

const (
	AccountOperational AccountType = iota + 1
	AccountGeneral
	AccountCommission
	AccountMaster
	AccountNotVerified
	AccountSyndicate
)

// IsSystem reports whether the account type is a privileged system role.
// System accounts are exempt from fees and limits.
func (t AccountType) IsSystem() bool {
	switch t {
	case AccountMaster, AccountCommission, AccountOperational:
		return true
	default:
		return false
	}
}

// Account is the core identity record: id, role, and the signature weight
// threshold a transaction from this account must meet.
type Account struct {
	AccountID   string
	AccountType AccountType
	Thresholds  uint32
}

// AccountKey keys accounts by id.
type AccountKey struct {
	AccountID string
}

func (k AccountKey) Type() EntryType { return TypeAccount }

func (k AccountKey) canonicalFields() map[string]any {
	return map[string]any{"account_id": k.AccountID}
}

func (a *Account) Type() EntryType { return TypeAccount }

func (a *Account) Key() Key { return AccountKey{AccountID: a.AccountID} }

func (a *Account) Validate() error {
	if a.AccountID == "" {
		return fmt.Errorf("account: empty account id")
	}
	if a.AccountType < AccountOperational || a.AccountType > AccountSyndicate {
		return fmt.Errorf("account: unknown account type %d", a.AccountType)
	}
	return nil
}

func (a *Account) CloneBody() Body {
	c := *a
	return &c
}

// Limits bounds an account's rolling outflow statistics per window.
// Zero value means "no limit configured"; use Unbounded for explicit
// unlimited limits.
type Limits struct {
	DailyOut   int64
	WeeklyOut  int64
	MonthlyOut int64
	AnnualOut  int64
}

// UnboundedLimits places no cap on any window.
func UnboundedLimits() Limits {
	return Limits{
		DailyOut:   MaxAmount,
		WeeklyOut:  MaxAmount,
		MonthlyOut: MaxAmount,
		AnnualOut:  MaxAmount,
	}
}

// AccountLimits overrides the account-type default limits for one account.
type AccountLimits struct {
	AccountID string
	Limits    Limits
}

// AccountLimitsKey keys per-account limits by account id.
type AccountLimitsKey struct {
	AccountID string
}

func (k AccountLimitsKey) Type() EntryType { return TypeAccountLimits }

func (k AccountLimitsKey) canonicalFields() map[string]any {
	return map[string]any{"account_id": k.AccountID}
}

func (l *AccountLimits) Type() EntryType { return TypeAccountLimits }

func (l *AccountLimits) Key() Key { return AccountLimitsKey{AccountID: l.AccountID} }

func (l *AccountLimits) Validate() error {
	if l.AccountID == "" {
		return fmt.Errorf("account limits: empty account id")
	}
	return nil
}

func (l *AccountLimits) CloneBody() Body {
	c := *l
	return &c
}

// AccountTypeLimits holds the default limits for every account of a type.
type AccountTypeLimits struct {
	AccountType AccountType
	Limits      Limits
}

// AccountTypeLimitsKey keys default limits by account type.
type AccountTypeLimitsKey struct {
	AccountType AccountType
}

func (k AccountTypeLimitsKey) Type() EntryType { return TypeAccountTypeLimits }

func (k AccountTypeLimitsKey) canonicalFields() map[string]any {
	return map[string]any{"account_type": int64(k.AccountType)}
}

func (l *AccountTypeLimits) Type() EntryType { return TypeAccountTypeLimits }

func (l *AccountTypeLimits) Key() Key {
	return AccountTypeLimitsKey{AccountType: l.AccountType}
}

func (l *AccountTypeLimits) Validate() error {
	if l.AccountType == 0 {
		return fmt.Errorf("account type limits: missing account type")
	}
	return nil
}

func (l *AccountTypeLimits) CloneBody() Body {
	c := *l
	return &c
}
