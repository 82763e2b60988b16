package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultSize = 30
	MaxSize     = 1000
)

// Request はクライアントから受け取った未検証のページ指定です。
type Request struct {
	SortField     string
	SortDirection string
	Cursor        string
	IDAfter       *int64
	Size          *int
}

// Position はソート上の一点 (主ソート値, id) です。Value が nil の場合は NULL です。
type Position struct {
	Value any
	ID    int64
}

// Query は正規化済みのページ指定です。
type Query struct {
	Key       SortKey
	Direction Direction
	Size      int
	// After はシーク開始位置です。nil の場合は先頭から読みます。
	After *Position
	// AnchorID はカーソルなしで idAfter が指定された場合の基準行です。
	AnchorID *int64
}

// NormalizeSize はページサイズを既定値と上限で正規化します。
func NormalizeSize(size *int) (int, error) {
	if size == nil {
		return DefaultSize, nil
	}
	if *size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPageSize, *size)
	}
	if *size > MaxSize {
		return MaxSize, nil
	}
	return *size, nil
}

// Normalize はリクエストをホワイトリストに照らして検証し、Query を組み立てます。
// カーソルは同じソート条件で発行されたものでなければ ErrInvalidCursor になります。
func Normalize(req Request, keys SortKeys) (Query, error) {
	key, err := keys.Resolve(req.SortField)
	if err != nil {
		return Query{}, err
	}
	dir, err := ParseDirection(req.SortDirection, keys.DefaultDirection())
	if err != nil {
		return Query{}, err
	}
	size, err := NormalizeSize(req.Size)
	if err != nil {
		return Query{}, err
	}

	q := Query{Key: key, Direction: dir, Size: size}

	if req.Cursor != "" {
		c, err := Decode(req.Cursor)
		if err != nil {
			return Query{}, err
		}
		if c.Field != key.Field || c.Direction != dir {
			return Query{}, fmt.Errorf("%w: issued for %s %s", ErrInvalidCursor, c.Field, c.Direction)
		}
		if req.IDAfter != nil && *req.IDAfter != c.ID {
			return Query{}, fmt.Errorf("%w: idAfter does not match cursor", ErrInvalidCursor)
		}
		v, err := key.DecodeValue(c.Value)
		if err != nil {
			return Query{}, err
		}
		q.After = &Position{Value: v, ID: c.ID}
		return q, nil
	}

	if req.IDAfter != nil {
		if *req.IDAfter <= 0 {
			return Query{}, fmt.Errorf("%w: %d", ErrInvalidIDAfter, *req.IDAfter)
		}
		id := *req.IDAfter
		q.AnchorID = &id
	}
	return q, nil
}

// ErrAnchorNotFound は AnchorLookup が基準行を見つけられなかったことを示します。
var ErrAnchorNotFound = errors.New("pagination: anchor row not found")

// AnchorLookup は id に対応する行の主ソート値を返します。
type AnchorLookup func(ctx context.Context, key SortKey, id int64) (any, error)

// ResolveAnchor は idAfter のみが指定された場合に基準行の位置を読み込みます。
func (q *Query) ResolveAnchor(ctx context.Context, lookup AnchorLookup) error {
	if q.AnchorID == nil || q.After != nil {
		return nil
	}
	id := *q.AnchorID
	v, err := lookup(ctx, q.Key, id)
	if err != nil {
		if errors.Is(err, ErrAnchorNotFound) {
			return fmt.Errorf("%w: %d", ErrInvalidIDAfter, id)
		}
		return err
	}
	q.After = &Position{Value: v, ID: id}
	q.AnchorID = nil
	return nil
}

// Less は q の並び順で a が b より前に来るかを返します。
// 昇順では NULL が最後、降順では NULL が先頭になり、同値は id で決まります。
func (q Query) Less(a, b Position) bool {
	c := compareValues(a.Value, b.Value)
	if q.Direction == Desc {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	if q.Direction == Desc {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}

// Follows は p がシーク位置より後ろにあるかを返します。After が nil なら常に true です。
func (q Query) Follows(p Position) bool {
	if q.After == nil {
		return true
	}
	return q.Less(*q.After, p)
}

// compareValues は昇順・NULL 最後の比較結果を返します。
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	}
	return 0
}
