package tx

import (
	"fmt"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

// changesMeta serializes a change list into the canonical JSON stored in
// the history tables. Each element carries the change type, the record
// kind, the serialized key, and the pre/post version stamps; bodies stay
// in their record tables.
func changesMeta(changes []delta.Change) (string, error) {
	items := make([]any, 0, len(changes))
	for _, ch := range changes {
		item := map[string]any{
			"change": int64(ch.Type),
			"kind":   ch.Key.Type().String(),
			"key":    record.CacheKey(ch.Key),
		}
		if ch.Previous != nil {
			item["previous_modified"] = ch.Previous.LastModified
		}
		if ch.Current != nil {
			item["modified"] = ch.Current.LastModified
		}
		items = append(items, item)
	}

	data, err := record.MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("serialize change meta: %w", err)
	}
	return string(data), nil
}

// resultMeta serializes a result into the canonical JSON stored in the
// txhistory result column.
func resultMeta(res *Result) (string, error) {
	ops := make([]any, 0, len(res.OpResults))
	for _, o := range res.OpResults {
		ops = append(ops, map[string]any{"code": int64(o.Code)})
	}

	data, err := record.MarshalCanonical(map[string]any{
		"code":        int64(res.Code),
		"fee_charged": res.FeeCharged,
		"operations":  ops,
	})
	if err != nil {
		return "", fmt.Errorf("serialize result meta: %w", err)
	}
	return string(data), nil
}
