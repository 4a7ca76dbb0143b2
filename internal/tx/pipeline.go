package tx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tidevault/ledger/internal/account"
	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/errs"
	"github.com/tidevault/ledger/internal/ledger"
	"github.com/tidevault/ledger/internal/record"
	"github.com/tidevault/ledger/internal/store"
)

// FeeAssetKey is the key-value entry naming the asset fees are charged
// in. No entry means no fees are charged.
const FeeAssetKey = "transaction_fee_asset"

// Pipeline validates and applies transactions. One pipeline value per
// process; applies run strictly one at a time on the single writer.
type Pipeline struct {
	store    *store.Store
	registry *store.Registry
	header   *ledger.Header
	accounts *account.Manager

	commissionAccount string
	expiration        int64

	txIndex uint32
	log     *slog.Logger
}

func NewPipeline(st *store.Store, reg *store.Registry, header *ledger.Header,
	accounts *account.Manager, cfg *ledger.Config, log *slog.Logger) *Pipeline {

	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:             st,
		registry:          reg,
		header:            header,
		accounts:          accounts,
		commissionAccount: cfg.CommissionAccount,
		expiration:        cfg.TxExpiration,
		log:               log,
	}
}

// CheckValid runs every check that does not mutate state: structure, time
// bounds, duplicate detection, source account and signature weight, fee
// ceiling, and per-operation static validation. The first operation
// failure short-circuits; later result slots stay OpNotApplied.
func (p *Pipeline) CheckValid(ctx context.Context, sc *store.Scope, t *Transaction) (*Result, error) {
	hash, err := t.ContentHash()
	if err != nil {
		return nil, err
	}
	res := &Result{Hash: hash, OpResults: make([]OpResult, len(t.Operations))}

	if len(t.Operations) == 0 {
		res.Code = TxMissingOperation
		return res, nil
	}

	closeTime := uint64(p.header.CloseTime.Unix())
	tb := t.TimeBounds
	if tb.MinTime != 0 && closeTime < tb.MinTime {
		res.Code = TxTooEarly
		return res, nil
	}
	if tb.MaxTime != 0 && closeTime > tb.MaxTime {
		res.Code = TxTooLate
		return res, nil
	}
	if tb.MaxTime != 0 && tb.MaxTime > closeTime+uint64(p.expiration) {
		// Declared validity window reaches past the allowed horizon.
		res.Code = TxTooLate
		return res, nil
	}

	seen, err := p.registry.TimingExists(ctx, sc, hash)
	if err != nil {
		return nil, err
	}
	if seen {
		res.Code = TxDuplicate
		return res, nil
	}

	src, err := p.loadSource(ctx, sc, t)
	if err != nil {
		return nil, err
	}
	if src == nil {
		res.Code = TxNoAccount
		return res, nil
	}
	if t.SignatureWeight < src.Thresholds {
		res.Code = TxBadAuth
		return res, nil
	}

	// An over-ceiling fee is rejected here, before anything is charged.
	if p.feeApplies(src) {
		asset, err := p.feeAsset(ctx, sc)
		if err != nil {
			return nil, err
		}
		if asset != "" {
			total, ok, err := p.totalFee(ctx, sc, t, asset)
			if err != nil {
				return nil, err
			}
			if !ok || total > t.MaxTotalFee {
				res.Code = TxInsufficientFee
				return res, nil
			}
		}
	}

	env := &Env{
		Scope:    sc,
		Registry: p.registry,
		Accounts: p.accounts,
		Header:   p.header,
		Source:   src,
	}
	for i, op := range t.Operations {
		if code := op.Validate(env); code != OpSuccess {
			res.OpResults[i].Code = code
			res.Code = TxFailed
			return res, nil
		}
		res.OpResults[i].Code = OpSuccess
	}

	res.Code = TxSuccess
	return res, nil
}

// Apply runs the full pipeline: validate, charge the fee durably, then
// apply every operation inside its own child delta within one store write
// scope. All operations succeed and the transaction commits as one unit,
// or the first failure discards everything except the already durable
// fee. Either way a history row and a timing row are written.
func (p *Pipeline) Apply(ctx context.Context, t *Transaction) (*Result, error) {
	res, err := p.CheckValid(ctx, p.store.Base(), t)
	if err != nil {
		return nil, err
	}
	if res.Code != TxSuccess {
		p.log.Info("transaction rejected", "tx", res.Hash, "code", res.Code.String())
		return res, nil
	}
	// Reset the slots: apply owns them from here.
	for i := range res.OpResults {
		res.OpResults[i] = OpResult{}
	}

	src, err := p.loadSource(ctx, p.store.Base(), t)
	if err != nil {
		return nil, err
	}

	feeCode, err := p.processFee(ctx, t, src, res)
	if err != nil {
		return nil, err
	}
	if feeCode != TxSuccess {
		res.Code = feeCode
		p.log.Info("transaction rejected", "tx", res.Hash, "code", res.Code.String())
		return res, nil
	}

	if err := p.applyOperations(ctx, t, src, res); err != nil {
		return nil, err
	}

	p.txIndex++
	p.log.Info("transaction applied",
		"tx", res.Hash, "code", res.Code.String(),
		"ops", len(t.Operations), "fee", res.FeeCharged)
	return res, nil
}

// processFee charges the transaction fee in its own write scope so the
// charge stays durable even when operation processing later fails. The
// balance mutations and the fee history row commit together.
func (p *Pipeline) processFee(ctx context.Context, t *Transaction, src *record.Account, res *Result) (ResultCode, error) {
	if !p.feeApplies(src) {
		return TxSuccess, nil
	}

	sc, err := p.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer sc.Rollback()

	asset, err := p.feeAsset(ctx, sc)
	if err != nil {
		return 0, err
	}
	if asset == "" {
		return TxSuccess, nil
	}

	total, ok, err := p.totalFee(ctx, sc, t, asset)
	if err != nil {
		return 0, err
	}
	if !ok || total > t.MaxTotalFee {
		return TxInsufficientFee, nil
	}
	if total == 0 {
		return TxSuccess, nil
	}

	d := delta.New()
	code, err := p.chargeFee(ctx, sc, d, t.Source, asset, total)
	if err != nil || code != TxSuccess {
		return code, err
	}

	changes, err := changesMeta(d.Changes())
	if err != nil {
		return 0, err
	}
	if err := p.registry.WriteTxFeeHistory(ctx, sc, store.TxFeeHistoryRow{
		TxID:      res.Hash,
		LedgerSeq: p.header.Seq,
		TxIndex:   p.txIndex,
		Changes:   changes,
	}); err != nil {
		return 0, err
	}

	if err := d.Commit(); err != nil {
		return 0, err
	}
	if err := sc.Commit(); err != nil {
		return 0, err
	}
	res.FeeCharged = total
	return TxSuccess, nil
}

// chargeFee debits the source's fee-asset balance and credits the
// commission account, creating the commission balance on first use.
func (p *Pipeline) chargeFee(ctx context.Context, sc *store.Scope, d *delta.Delta,
	source, asset string, total int64) (ResultCode, error) {

	srcBal, err := p.registry.LoadBalanceByAccountAsset(ctx, sc, source, asset, d)
	if err != nil {
		return 0, err
	}
	if srcBal == nil || !srcBal.Body.(*record.Balance).TryCharge(total) {
		return TxInsufficientFee, nil
	}
	if err := p.registry.Change(ctx, sc, d, srcBal); err != nil {
		return 0, err
	}

	comBal, err := p.registry.LoadBalanceByAccountAsset(ctx, sc, p.commissionAccount, asset, d)
	if err != nil {
		return 0, err
	}
	if comBal == nil {
		comBal = &record.Entry{Body: &record.Balance{
			BalanceID: uuid.NewString(),
			AccountID: p.commissionAccount,
			Asset:     asset,
			Amount:    total,
		}}
		return TxSuccess, p.registry.Add(ctx, sc, d, comBal)
	}
	if !comBal.Body.(*record.Balance).TryFund(total) {
		return 0, errs.BusinessRule(errs.CodeOverflow,
			"commission balance overflow crediting %d %s", total, asset)
	}
	return TxSuccess, p.registry.Change(ctx, sc, d, comBal)
}

// applyOperations runs the operations inside one write scope. Child
// deltas fold into the transaction delta as they finish; the first
// failure rolls the scope back, leaving only the fee charge, the
// history row, and the timing row durable.
func (p *Pipeline) applyOperations(ctx context.Context, t *Transaction, src *record.Account, res *Result) error {
	sc, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer sc.Rollback()

	txDelta := delta.New()
	env := &Env{
		Scope:    sc,
		Registry: p.registry,
		Accounts: p.accounts,
		Header:   p.header,
		Source:   src,
	}

	for i, op := range t.Operations {
		opDelta := txDelta.NewChild()
		code, err := op.Apply(ctx, env, opDelta)
		if err != nil {
			p.invalidateTouched(txDelta, opDelta)
			return err
		}
		res.OpResults[i].Code = code

		if code != OpSuccess {
			meta := "[]"
			if p.header.Features.DetailedChanges {
				// Fold the failed operation so the history row carries
				// the full change journal of the attempt.
				if err := opDelta.Commit(); err != nil {
					return err
				}
				if meta, err = changesMeta(txDelta.AllChanges()); err != nil {
					return err
				}
			} else if err := opDelta.Discard(); err != nil {
				return err
			}
			p.invalidateTouched(txDelta, opDelta)
			if err := txDelta.Discard(); err != nil {
				return err
			}
			if err := sc.Rollback(); err != nil {
				return err
			}
			res.Code = TxFailed
			base := p.store.Base()
			if err := p.writeHistory(ctx, base, res, meta); err != nil {
				return err
			}
			// A failed transaction still consumes its hash: replays come
			// back as TxDuplicate from CheckValid.
			return p.registry.WriteTxTiming(ctx, base, res.Hash, p.validBefore(t))
		}

		if err := opDelta.Commit(); err != nil {
			return err
		}
	}

	var changes []delta.Change
	if p.header.Features.DetailedChanges {
		changes = txDelta.AllChanges()
	} else {
		changes = txDelta.Changes()
	}
	meta, err := changesMeta(changes)
	if err != nil {
		return err
	}

	res.Code = TxSuccess
	if err := p.writeHistory(ctx, sc, res, meta); err != nil {
		return err
	}
	if err := p.registry.WriteTxTiming(ctx, sc, res.Hash, p.validBefore(t)); err != nil {
		return err
	}

	if err := txDelta.Commit(); err != nil {
		return err
	}
	return sc.Commit()
}

func (p *Pipeline) writeHistory(ctx context.Context, sc *store.Scope, res *Result, meta string) error {
	body := fmt.Sprintf(`{"hash":%q}`, res.Hash)
	result, err := resultMeta(res)
	if err != nil {
		return err
	}
	return p.registry.WriteTxHistory(ctx, sc, store.TxHistoryRow{
		TxID:      res.Hash,
		LedgerSeq: p.header.Seq,
		TxIndex:   p.txIndex,
		Body:      body,
		Result:    result,
		Meta:      meta,
	})
}

// invalidateTouched drops every cache entry a rolled-back scope may have
// populated with uncommitted reads.
func (p *Pipeline) invalidateTouched(deltas ...*delta.Delta) {
	c := p.registry.Cache()
	for _, d := range deltas {
		for _, ch := range d.AllChanges() {
			c.Invalidate(ch.Key)
		}
	}
}

func (p *Pipeline) validBefore(t *Transaction) uint64 {
	if t.TimeBounds.MaxTime != 0 {
		return t.TimeBounds.MaxTime
	}
	return uint64(p.header.CloseTime.Unix()) + uint64(p.expiration)
}

func (p *Pipeline) loadSource(ctx context.Context, sc *store.Scope, t *Transaction) (*record.Account, error) {
	e, err := p.registry.Load(ctx, sc, record.AccountKey{AccountID: t.Source}, nil)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	return e.Body.(*record.Account), nil
}

func (p *Pipeline) feeApplies(src *record.Account) bool {
	return p.header.Features.FeeExtension &&
		p.commissionAccount != "" &&
		!src.AccountType.IsSystem()
}

// feeAsset resolves the configured fee asset. An absent or non-string
// entry means no fee is charged.
func (p *Pipeline) feeAsset(ctx context.Context, sc *store.Scope) (string, error) {
	e, err := p.registry.Load(ctx, sc, record.KeyValueKey{EntryKey: FeeAssetKey}, nil)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", nil
	}
	kv := e.Body.(*record.KeyValue)
	if kv.ValueType != record.KeyValueString {
		return "", nil
	}
	return kv.StringVal, nil
}

// totalFee sums the fixed per-kind fee over the operations, memoizing the
// fee table lookup per kind. ok=false means the sum overflowed.
func (p *Pipeline) totalFee(ctx context.Context, sc *store.Scope, t *Transaction, asset string) (int64, bool, error) {
	memo := make(map[OpKind]int64)
	var total int64
	for _, op := range t.Operations {
		fixed, ok := memo[op.Kind()]
		if !ok {
			e, err := p.registry.LoadFeeForBand(ctx, sc,
				record.FeeOperation, asset, int64(op.Kind()), 0, nil)
			if err != nil {
				return 0, false, err
			}
			if e != nil {
				fixed = e.Body.(*record.Fee).Fixed
			}
			memo[op.Kind()] = fixed
		}

		next, ok := record.SafeAdd(total, fixed)
		if !ok {
			return 0, false, nil
		}
		total = next
	}
	return total, true, nil
}
