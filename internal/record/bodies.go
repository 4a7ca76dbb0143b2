package record

import (
	"fmt"
	"time"
)

// Reference is an idempotency marker: a (sender, reference) pair recorded
// once and never updated. Its presence proves the referenced action has
// already been performed.
type Reference struct {
	Sender    string
	Reference string
}

// ReferenceKey is the composite natural key of a reference record.
type ReferenceKey struct {
	Sender    string
	Reference string
}

func (k ReferenceKey) Type() EntryType { return TypeReference }

func (k ReferenceKey) canonicalFields() map[string]any {
	return map[string]any{"sender": k.Sender, "reference": k.Reference}
}

func (r *Reference) Type() EntryType { return TypeReference }

func (r *Reference) Key() Key {
	return ReferenceKey{Sender: r.Sender, Reference: r.Reference}
}

func (r *Reference) Validate() error {
	if r.Sender == "" || r.Reference == "" {
		return fmt.Errorf("reference: empty sender or reference")
	}
	if len(r.Reference) > 64 {
		return fmt.Errorf("reference: reference exceeds 64 bytes")
	}
	return nil
}

func (r *Reference) CloneBody() Body {
	c := *r
	return &c
}

// KeyValueType discriminates the typed payload of a key-value entry.
type KeyValueType int

const (
	KeyValueString KeyValueType = iota + 1
	KeyValueUint32
	KeyValueUint64
)

// KeyValue is a versioned typed payload under an opaque string key, used
// for ledger-wide configuration such as the transaction fee asset.
type KeyValue struct {
	EntryKey    string
	ValueType   KeyValueType
	StringVal   string
	Uint32Val   uint32
	Uint64Val   uint64
	BodyVersion int32
}

// KeyValueKey keys entries by their string key.
type KeyValueKey struct {
	EntryKey string
}

func (k KeyValueKey) Type() EntryType { return TypeKeyValue }

func (k KeyValueKey) canonicalFields() map[string]any {
	return map[string]any{"key": k.EntryKey}
}

func (kv *KeyValue) Type() EntryType { return TypeKeyValue }

func (kv *KeyValue) Key() Key { return KeyValueKey{EntryKey: kv.EntryKey} }

func (kv *KeyValue) Validate() error {
	if kv.EntryKey == "" {
		return fmt.Errorf("key value: empty key")
	}
	if len(kv.EntryKey) > 256 {
		return fmt.Errorf("key value: key exceeds 256 bytes")
	}
	switch kv.ValueType {
	case KeyValueString, KeyValueUint32, KeyValueUint64:
		return nil
	default:
		return fmt.Errorf("key value: unknown value type %d", kv.ValueType)
	}
}

func (kv *KeyValue) CloneBody() Body {
	c := *kv
	return &c
}

// EntityType is a descriptor of an entity category: numeric id, domain
// type, and display name.
type EntityType struct {
	ID     uint64
	Domain int32
	Name   string
}

// EntityTypeKey keys entity types by id and domain.
type EntityTypeKey struct {
	ID     uint64
	Domain int32
}

func (k EntityTypeKey) Type() EntryType { return TypeEntityType }

func (k EntityTypeKey) canonicalFields() map[string]any {
	return map[string]any{"id": k.ID, "domain": k.Domain}
}

func (e *EntityType) Type() EntryType { return TypeEntityType }

func (e *EntityType) Key() Key {
	return EntityTypeKey{ID: e.ID, Domain: e.Domain}
}

func (e *EntityType) Validate() error {
	if e.ID == 0 {
		return fmt.Errorf("entity type: zero id")
	}
	if e.Name == "" {
		return fmt.Errorf("entity type: empty name")
	}
	return nil
}

func (e *EntityType) CloneBody() Body {
	c := *e
	return &c
}

// ExternalSystemAccountID binds a ledger account to its identifier in an
// external system (one binding per account per external system).
type ExternalSystemAccountID struct {
	AccountID          string
	ExternalSystemType int32
	Data               string
}

// ExternalSystemAccountIDKey is the composite binding key.
type ExternalSystemAccountIDKey struct {
	AccountID          string
	ExternalSystemType int32
}

func (k ExternalSystemAccountIDKey) Type() EntryType { return TypeExternalSystemAccountID }

func (k ExternalSystemAccountIDKey) canonicalFields() map[string]any {
	return map[string]any{
		"account_id":           k.AccountID,
		"external_system_type": k.ExternalSystemType,
	}
}

func (x *ExternalSystemAccountID) Type() EntryType { return TypeExternalSystemAccountID }

func (x *ExternalSystemAccountID) Key() Key {
	return ExternalSystemAccountIDKey{
		AccountID:          x.AccountID,
		ExternalSystemType: x.ExternalSystemType,
	}
}

func (x *ExternalSystemAccountID) Validate() error {
	if x.AccountID == "" {
		return fmt.Errorf("external system account id: empty account id")
	}
	if x.Data == "" {
		return fmt.Errorf("external system account id: empty data")
	}
	return nil
}

func (x *ExternalSystemAccountID) CloneBody() Body {
	c := *x
	return &c
}

// ExternalSystemAccountIDPool is one poolable external-system identifier:
// either free or bound to an account until ExpiresAt.
type ExternalSystemAccountIDPool struct {
	PoolID             uint64
	ExternalSystemType int32
	Data               string
	AccountID          string // empty while unbound
	ExpiresAt          time.Time
	BindedAt           time.Time
}

// ExternalSystemAccountIDPoolKey keys pool entries by pool id.
type ExternalSystemAccountIDPoolKey struct {
	PoolID uint64
}

func (k ExternalSystemAccountIDPoolKey) Type() EntryType {
	return TypeExternalSystemAccountIDPool
}

func (k ExternalSystemAccountIDPoolKey) canonicalFields() map[string]any {
	return map[string]any{"pool_id": k.PoolID}
}

func (p *ExternalSystemAccountIDPool) Type() EntryType {
	return TypeExternalSystemAccountIDPool
}

func (p *ExternalSystemAccountIDPool) Key() Key {
	return ExternalSystemAccountIDPoolKey{PoolID: p.PoolID}
}

func (p *ExternalSystemAccountIDPool) Validate() error {
	if p.PoolID == 0 {
		return fmt.Errorf("external system pool: zero pool id")
	}
	if p.Data == "" {
		return fmt.Errorf("external system pool: empty data")
	}
	return nil
}

func (p *ExternalSystemAccountIDPool) CloneBody() Body {
	c := *p
	return &c
}

// IsBound reports whether the pool entry is currently bound to an account.
func (p *ExternalSystemAccountIDPool) IsBound() bool {
	return p.AccountID != ""
}
