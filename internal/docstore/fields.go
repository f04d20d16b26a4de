package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Lookup: ドット区切りでネストしたフィールドを引く
func Lookup(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, key := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetField: 途中のマップが無ければ作る
func SetField(data map[string]any, field string, v any) {
	keys := strings.Split(field, ".")
	cur := data
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}

// ToDecimal: 文書内の数値表現（json.Number / 文字列 / 数値型）を decimal へ
func ToDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return n, nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Zero, fmt.Errorf("not a number: %T", v)
	}
}

// ApplyIncrements: Increment の読み書き型実装（SQL 系ストア用）
func ApplyIncrements(data map[string]any, deltas map[string]decimal.Decimal, set map[string]any) error {
	for field, d := range deltas {
		cur, _ := Lookup(data, field)
		base, err := ToDecimal(cur)
		if err != nil {
			return fmt.Errorf("increment %s: %w", field, err)
		}
		SetField(data, field, json.Number(base.Add(d).String()))
	}
	for field, v := range set {
		SetField(data, field, v)
	}
	return nil
}

// compare: 数値同士は decimal、それ以外は文字列/真偽値で比較。比較不能なら ok=false
func compare(a, b any) (int, bool) {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok || ba != bb {
			return 1, ok
		}
		return 0, true
	}
	da, err := ToDecimal(a)
	if err != nil {
		return 0, false
	}
	db, err := ToDecimal(b)
	if err != nil {
		return 0, false
	}
	return da.Cmp(db), true
}

func Match(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := Lookup(data, f.Field)
		if !ok {
			return false
		}
		c, ok := compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEq:
			ok = c == 0
		case OpGte:
			ok = c >= 0
		case OpLte:
			ok = c <= 0
		case OpGt:
			ok = c > 0
		case OpLt:
			ok = c < 0
		default:
			ok = false
		}
		if !ok {
			return false
		}
	}
	return true
}

// Apply: フィルタ・並び替え・件数制限をメモリ上で行う
func Apply(snaps []Snapshot, q Query) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if Match(s.Data, q.Where) {
			out = append(out, s)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := Lookup(out[i].Data, q.OrderBy)
			b, _ := Lookup(out[j].Data, q.OrderBy)
			c, _ := compare(a, b)
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
