package pagination

import "github.com/samber/lo"

// Page はカーソルページングの結果です。
type Page[T any] struct {
	Content       []T
	NextCursor    string
	NextIDAfter   *int64
	Size          int
	TotalElements int64
	HasNext       bool
}

// BuildPage は Size+1 件まで読み込んだ rows からページを組み立てます。
// 余分な 1 件があれば次ページありとし、最後に返す行の位置を次カーソルに記録します。
func BuildPage[T any](rows []T, q Query, total int64, position func(T) Position) (Page[T], error) {
	page := Page[T]{Content: rows, TotalElements: total}
	if page.Content == nil {
		page.Content = []T{}
	}

	if len(rows) > q.Size {
		page.Content = rows[:q.Size]
		page.HasNext = true

		last := position(page.Content[len(page.Content)-1])
		value, err := q.Key.EncodeValue(last.Value)
		if err != nil {
			return Page[T]{}, err
		}
		token, err := Encode(Cursor{
			Version:   CursorVersion,
			Field:     q.Key.Field,
			Direction: q.Direction,
			Value:     value,
			ID:        last.ID,
		})
		if err != nil {
			return Page[T]{}, err
		}
		id := last.ID
		page.NextCursor = token
		page.NextIDAfter = &id
	}

	page.Size = len(page.Content)
	return page, nil
}

// Map は Content の要素型を変換します。
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	return Page[U]{
		Content:       lo.Map(p.Content, func(v T, _ int) U { return fn(v) }),
		NextCursor:    p.NextCursor,
		NextIDAfter:   p.NextIDAfter,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		HasNext:       p.HasNext,
	}
}
