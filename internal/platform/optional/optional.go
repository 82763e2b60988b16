// Package optional は JSON の「未指定」と「null」を区別して受け取る型を提供します。
package optional

import (
	"bytes"
	"encoding/json"
)

// Value は PATCH 入力の 1 フィールドです。
// Set が false なら未指定、Set かつ Null なら null 指定、それ以外は Val が有効です。
type Value[T any] struct {
	Set  bool
	Null bool
	Val  T
}

// Of は値が指定された Value を返します。
func Of[T any](v T) Value[T] {
	return Value[T]{Set: true, Val: v}
}

// Null は null が指定された Value を返します。
func Null[T any]() Value[T] {
	return Value[T]{Set: true, Null: true}
}

// FromPtr は nil を null、それ以外を値として指定された Value を返します。
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return Null[T]()
	}
	return Of(*p)
}

// Present は値が指定され、かつ null でないかを返します。
func (v Value[T]) Present() bool {
	return v.Set && !v.Null
}

// Ptr は値が指定されていればそのポインタを、それ以外は nil を返します。
func (v Value[T]) Ptr() *T {
	if !v.Present() {
		return nil
	}
	val := v.Val
	return &val
}

// UnmarshalJSON はフィールドが存在した時点で Set を立てます。
func (v *Value[T]) UnmarshalJSON(b []byte) error {
	v.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		v.Null = true
		var zero T
		v.Val = zero
		return nil
	}
	v.Null = false
	return json.Unmarshal(b, &v.Val)
}

// MarshalJSON は未指定と null をいずれも null として出力します。
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(v.Val)
}
