// Package tx implements the transaction pipeline: validation, fee
// charging, and all-or-nothing application of a transaction's operations
// against the durable store.
package tx

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidevault/ledger/internal/account"
	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/ledger"
	"github.com/tidevault/ledger/internal/record"
	"github.com/tidevault/ledger/internal/store"
)

// ResultCode is the transaction-level outcome.
type ResultCode int

const (
	TxSuccess ResultCode = iota
	TxFailed
	TxMissingOperation
	TxTooEarly
	TxTooLate
	TxNoAccount
	TxBadAuth
	TxInsufficientFee
	TxDuplicate
)

func (c ResultCode) String() string {
	switch c {
	case TxSuccess:
		return "success"
	case TxFailed:
		return "failed"
	case TxMissingOperation:
		return "missing_operation"
	case TxTooEarly:
		return "too_early"
	case TxTooLate:
		return "too_late"
	case TxNoAccount:
		return "no_account"
	case TxBadAuth:
		return "bad_auth"
	case TxInsufficientFee:
		return "insufficient_fee"
	case TxDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// OpCode is one operation's result slot. OpNotApplied marks slots after
// the first failure: validation and apply short-circuit, so later
// operations are never reached.
type OpCode int

const (
	OpNotApplied OpCode = iota
	OpSuccess
	OpMalformed
	OpFailed
)

func (c OpCode) String() string {
	switch c {
	case OpNotApplied:
		return "not_applied"
	case OpSuccess:
		return "success"
	case OpMalformed:
		return "malformed"
	case OpFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OpKind identifies an operation's kind for fee lookup. It doubles as
// the subtype column in the fee table.
type OpKind int64

// Env is the execution environment handed to operations: the active
// store scope, the registry, the account manager, and the ledger header.
// Operations mutate state exclusively through these, using the delta they
// are given.
type Env struct {
	Scope    *store.Scope
	Registry *store.Registry
	Accounts *account.Manager
	Header   *ledger.Header

	// Source is the transaction's loaded source account.
	Source *record.Account
}

// Operation is the contract every operation kind satisfies. The concrete
// business logic lives outside the pipeline; the pipeline only sequences
// validation and apply and owns the result slots.
type Operation interface {
	Kind() OpKind

	// CanonicalFields returns the operation's identity fields for the
	// transaction content hash.
	CanonicalFields() map[string]any

	// Validate performs static checks against current state. A non-success
	// code rejects the whole transaction.
	Validate(env *Env) OpCode

	// Apply executes the operation inside d. A non-success code fails the
	// transaction; an error is a storage problem that aborts the apply.
	Apply(ctx context.Context, env *Env, d *delta.Delta) (OpCode, error)
}

// TimeBounds is the transaction's validity window in unix seconds. A zero
// bound is unset.
type TimeBounds struct {
	MinTime uint64
	MaxTime uint64
}

// Transaction is one unit of ledger mutation: a source account, a salt
// distinguishing otherwise identical transactions, a validity window, the
// declared fee ceiling, and the ordered operations.
type Transaction struct {
	Source      string
	Salt        uint64
	TimeBounds  TimeBounds
	MaxTotalFee int64

	// SignatureWeight is the verified total weight of the transaction's
	// signatures. Signature verification itself happens upstream.
	SignatureWeight uint32

	Operations []Operation
}

// NewSalt draws a random transaction salt.
func NewSalt() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8])
}

// ContentHash returns the transaction's identity: the hex sha256 of its
// canonical serialization. Two transactions with the same hash are the
// same transaction.
func (t *Transaction) ContentHash() (string, error) {
	ops := make([]any, 0, len(t.Operations))
	for _, op := range t.Operations {
		fields := map[string]any{"kind": int64(op.Kind())}
		for k, v := range op.CanonicalFields() {
			fields[k] = v
		}
		ops = append(ops, fields)
	}

	data, err := record.MarshalCanonical(map[string]any{
		"source":        t.Source,
		"salt":          t.Salt,
		"min_time":      t.TimeBounds.MinTime,
		"max_time":      t.TimeBounds.MaxTime,
		"max_total_fee": t.MaxTotalFee,
		"operations":    ops,
	})
	if err != nil {
		return "", fmt.Errorf("hash transaction: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// OpResult is one operation's fixed result slot.
type OpResult struct {
	Code OpCode
}

// Result is the outcome of one Apply call.
type Result struct {
	Hash       string
	Code       ResultCode
	FeeCharged int64
	OpResults  []OpResult
}

// Succeeded reports whether every operation applied.
func (r *Result) Succeeded() bool { return r.Code == TxSuccess }
