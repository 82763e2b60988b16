package pagination

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Direction はソート方向です。
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid は方向が asc / desc のいずれかであるかを返します。
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// ParseDirection は大文字小文字を区別せずに方向を解釈します。空文字は fallback を返します。
func ParseDirection(raw string, fallback Direction) (Direction, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return fallback, nil
	}
	d := Direction(trimmed)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortDirection, raw)
	}
	return d, nil
}

// ValueKind は主ソート値の型です。
type ValueKind int

const (
	KindText ValueKind = iota
	KindDate
	KindTimestamp
)

const dateLayout = "2006-01-02"

// SortKey はエンドポイントが公開するソート可能フィールドです。
type SortKey struct {
	// Field はカーソルに記録される正規名です。
	Field string
	// Aliases はクライアントから受け付ける別名です。
	Aliases []string
	// Column は SQL 上の列式です。
	Column   string
	Kind     ValueKind
	Nullable bool
}

// EncodeValue は主ソート値を JSON に変換します。nil は NULL を表します。
func (k SortKey) EncodeValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	switch k.Kind {
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("pagination: %s expects string, got %T", k.Field, v)
		}
		return json.Marshal(s)
	case KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("pagination: %s expects time, got %T", k.Field, v)
		}
		return json.Marshal(t.UTC().Format(dateLayout))
	case KindTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("pagination: %s expects time, got %T", k.Field, v)
		}
		return json.Marshal(t.UTC().Format(time.RFC3339Nano))
	default:
		return nil, fmt.Errorf("pagination: unknown kind for %s", k.Field)
	}
}

// DecodeValue はカーソル内の JSON をクエリ引数用の値に戻します。
func (k SortKey) DecodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		if !k.Nullable {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidCursor, k.Field)
		}
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	switch k.Kind {
	case KindText:
		return s, nil
	case KindDate:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return t, nil
	case KindTimestamp:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return t.UTC(), nil
	default:
		return nil, ErrInvalidCursor
	}
}

// SortKeys はエンドポイントごとのソートフィールドのホワイトリストです。
type SortKeys struct {
	byName    map[string]SortKey
	def       SortKey
	direction Direction
}

// NewSortKeys はホワイトリストを構築します。keys の先頭が既定のソートフィールドです。
func NewSortKeys(direction Direction, keys ...SortKey) SortKeys {
	if len(keys) == 0 {
		panic("pagination: at least one sort key is required")
	}
	byName := make(map[string]SortKey, len(keys))
	for _, k := range keys {
		byName[k.Field] = k
		for _, alias := range k.Aliases {
			byName[alias] = k
		}
	}
	return SortKeys{byName: byName, def: keys[0], direction: direction}
}

// Resolve はクライアント指定のフィールド名を SortKey に変換します。空文字は既定値です。
func (s SortKeys) Resolve(field string) (SortKey, error) {
	trimmed := strings.TrimSpace(field)
	if trimmed == "" {
		return s.def, nil
	}
	k, ok := s.byName[trimmed]
	if !ok {
		return SortKey{}, fmt.Errorf("%w: %q", ErrInvalidSort, field)
	}
	return k, nil
}

// DefaultDirection は既定のソート方向です。
func (s SortKeys) DefaultDirection() Direction {
	return s.direction
}
