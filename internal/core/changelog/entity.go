package changelog

import (
	"strings"
	"time"
)

// Type は変更の種類です。
type Type string

const (
	TypeCreated Type = "CREATED"
	TypeUpdated Type = "UPDATED"
	TypeDeleted Type = "DELETED"
)

// ParseType は大文字小文字を区別せずに種類を解釈します。
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case TypeCreated, TypeUpdated, TypeDeleted:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

// ChangeLog は社員 1 件への 1 回の変更を表す監査ヘッダです。
// EmployeeNumber は外部キーではなく、社員削除後も履歴を残すためのスナップショットです。
type ChangeLog struct {
	ID             int64
	Type           Type
	EmployeeNumber string
	Memo           string
	IPAddress      string
	UpdatedAt      time.Time
}

// Diff はフィールド 1 つ分の変更です。Before / After の nil は値なしを表します。
type Diff struct {
	ID           int64
	ChangeLogID  int64
	PropertyName string
	Before       *string
	After        *string
}

// Source は変更の発生元です。
type Source struct {
	Memo      string
	IPAddress string
}
