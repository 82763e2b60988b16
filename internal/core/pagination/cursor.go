package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// CursorVersion はカーソルトークンのレイアウトバージョンです。
const CursorVersion = 1

var jsonNull = []byte("null")

// Cursor は直前ページ最終行の (主ソート値, id) と、それを生成したソート条件を保持します。
// Value が nil の場合は主ソート値が NULL であることを表します。
type Cursor struct {
	Version   int             `json:"v"`
	Field     string          `json:"f"`
	Direction Direction       `json:"d"`
	Value     json.RawMessage `json:"pv"`
	ID        int64           `json:"id"`
}

// Encode はカーソルを URL セーフな不透明トークンに変換します。
func Encode(c Cursor) (string, error) {
	if c.Version == 0 {
		c.Version = CursorVersion
	}
	if len(c.Value) == 0 {
		c.Value = jsonNull
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("pagination: encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode はトークンをカーソルに復元します。形式不正はすべて ErrInvalidCursor です。
func Decode(token string) (Cursor, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return Cursor{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var c Cursor
	if err := dec.Decode(&c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Version != CursorVersion {
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidCursor, c.Version)
	}
	if c.Field == "" || !c.Direction.Valid() {
		return Cursor{}, ErrInvalidCursor
	}
	if bytes.Equal(bytes.TrimSpace(c.Value), jsonNull) {
		c.Value = nil
	}
	return c, nil
}
