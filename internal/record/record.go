// Package record defines the typed, keyed units of ledger state: the closed
// set of record kinds, their bodies, their natural keys, and the
// deterministic key serialization used by the entry cache.
//
// A record's key never changes for its lifetime; only the body and the
// last-modified ledger sequence mutate. Two records of the same kind never
// share a key.
package record

// EntryType discriminates the closed set of record kinds.
type EntryType int

const (
	TypeStatistics EntryType = iota + 1
	TypeReference
	TypeSale
	TypeKeyValue
	TypeEntityType
	TypeExternalSystemAccountID
	TypeExternalSystemAccountIDPool
	TypeBalance
	TypeAccount
	TypeAccountLimits
	TypeAccountTypeLimits
	TypeFee
)

// AllTypes lists every record kind, in registry order.
var AllTypes = []EntryType{
	TypeStatistics,
	TypeReference,
	TypeSale,
	TypeKeyValue,
	TypeEntityType,
	TypeExternalSystemAccountID,
	TypeExternalSystemAccountIDPool,
	TypeBalance,
	TypeAccount,
	TypeAccountLimits,
	TypeAccountTypeLimits,
	TypeFee,
}

// String returns the table-style name of the entry type.
func (t EntryType) String() string {
	switch t {
	case TypeStatistics:
		return "statistics"
	case TypeReference:
		return "reference"
	case TypeSale:
		return "sale"
	case TypeKeyValue:
		return "key_value"
	case TypeEntityType:
		return "entity_type"
	case TypeExternalSystemAccountID:
		return "external_system_account_id"
	case TypeExternalSystemAccountIDPool:
		return "external_system_account_id_pool"
	case TypeBalance:
		return "balance"
	case TypeAccount:
		return "account"
	case TypeAccountLimits:
		return "account_limits"
	case TypeAccountTypeLimits:
		return "account_type_limits"
	case TypeFee:
		return "fee"
	default:
		return "unknown"
	}
}

// Key identifies one record within its kind. Keys are immutable value
// types; the canonical fields feed the deterministic cache-key encoding.
type Key interface {
	Type() EntryType

	// canonicalFields returns the natural-key fields in a form suitable
	// for canonical serialization. Implementations must be deterministic.
	canonicalFields() map[string]any
}

// Body is the kind-specific payload of a record.
type Body interface {
	Type() EntryType

	// Key derives the record's immutable natural key from the body.
	Key() Key

	// Validate checks the body's internal invariants.
	Validate() error

	// CloneBody returns a deep copy, so snapshots held by the cache and
	// the delta cannot alias live state.
	CloneBody() Body
}

// Entry is one unit of ledger state: a kind-specific body plus the ledger
// sequence at which it was last written.
type Entry struct {
	// LastModified is the ledger sequence active when the record was
	// last added or changed. Stamped by the adapters on every write.
	LastModified uint64

	Body Body
}

// Key returns the entry's natural key.
func (e *Entry) Key() Key {
	return e.Body.Key()
}

// Type returns the entry's record kind.
func (e *Entry) Type() EntryType {
	return e.Body.Type()
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{
		LastModified: e.LastModified,
		Body:         e.Body.CloneBody(),
	}
}
