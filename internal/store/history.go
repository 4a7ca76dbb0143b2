package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxHistoryRow is one applied transaction's durable history record, keyed
// by its content hash.
type TxHistoryRow struct {
	TxID      string
	LedgerSeq uint64
	TxIndex   uint32
	Body      string
	Result    string
	Meta      string
}

// TxFeeHistoryRow records the ledger changes made by fee processing for
// one transaction. Fees are charged before operations run and survive
// operation failure, so their changes are stored apart from the
// transaction's own meta.
type TxFeeHistoryRow struct {
	TxID      string
	LedgerSeq uint64
	TxIndex   uint32
	Changes   string
}

// WriteTxHistory inserts the transaction's history row. Exactly one row
// must be inserted; a duplicate txid means the same transaction was
// applied twice and the store is inconsistent.
func (r *Registry) WriteTxHistory(ctx context.Context, sc *Scope, row TxHistoryRow) error {
	return r.deps.execOne(ctx, sc, "txhistory", "insert", `
		INSERT INTO txhistory (txid, ledgerseq, txindex, txbody, txresult, txmeta)
		VALUES (?, ?, ?, ?, ?, ?)`,
		row.TxID, row.LedgerSeq, row.TxIndex, row.Body, row.Result, row.Meta)
}

// LoadTxHistory returns the history row for a transaction, or nil when
// none was recorded.
func (r *Registry) LoadTxHistory(ctx context.Context, sc *Scope, txID string) (*TxHistoryRow, error) {
	t := r.metrics.timeQuery("txhistory", "select")
	defer t.done()

	row := TxHistoryRow{TxID: txID}
	err := sc.exec().QueryRowContext(ctx, `
		SELECT ledgerseq, txindex, txbody, txresult, txmeta
		FROM txhistory WHERE txid = ?`, txID).
		Scan(&row.LedgerSeq, &row.TxIndex, &row.Body, &row.Result, &row.Meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select txhistory: %w", err)
	}
	return &row, nil
}

// WriteTxFeeHistory inserts the fee change row for a transaction.
func (r *Registry) WriteTxFeeHistory(ctx context.Context, sc *Scope, row TxFeeHistoryRow) error {
	return r.deps.execOne(ctx, sc, "txfeehistory", "insert", `
		INSERT INTO txfeehistory (txid, ledgerseq, txindex, txchanges)
		VALUES (?, ?, ?, ?)`,
		row.TxID, row.LedgerSeq, row.TxIndex, row.Changes)
}

// WriteTxTiming records the transaction id with its validity deadline so
// replays can be rejected until the deadline passes.
func (r *Registry) WriteTxTiming(ctx context.Context, sc *Scope, txID string, validBefore uint64) error {
	return r.deps.execOne(ctx, sc, "txtiming", "insert", `
		INSERT INTO txtiming (txid, valid_before) VALUES (?, ?)`,
		txID, validBefore)
}

// TimingExists reports whether the transaction id is already recorded.
func (r *Registry) TimingExists(ctx context.Context, sc *Scope, txID string) (bool, error) {
	t := r.metrics.timeQuery("txtiming", "select")
	defer t.done()

	var one int
	err := sc.exec().QueryRowContext(ctx,
		`SELECT 1 FROM txtiming WHERE txid = ?`, txID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select txtiming: %w", err)
	}
	return true, nil
}

// PruneTimings deletes timing rows whose deadline is at or before the
// given ledger close time.
func (r *Registry) PruneTimings(ctx context.Context, sc *Scope, closeTime uint64) (int64, error) {
	t := r.metrics.timeQuery("txtiming", "delete")
	defer t.done()

	res, err := sc.exec().ExecContext(ctx,
		`DELETE FROM txtiming WHERE valid_before <= ?`, closeTime)
	if err != nil {
		return 0, fmt.Errorf("prune txtiming: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune txtiming: rows affected: %w", err)
	}
	return n, nil
}
