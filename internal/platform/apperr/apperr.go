// Package apperr はドメイン横断のエラー種別を定義します。
//
// 各ドメインパッケージは New で種別付きの番兵エラーを宣言し、
// HTTP 層は KindOf で種別を解決してステータスコードに変換します。
package apperr

import (
	"github.com/cockroachdb/errors"
)

// Kind はエラー種別を表す番兵です。
type Kind struct {
	code string
}

func (k *Kind) Error() string { return k.code }

// Code は API で返却する機械可読なコードです。
func (k *Kind) Code() string { return k.code }

var (
	ErrValidation    = &Kind{code: "VALIDATION"}
	ErrNotFound      = &Kind{code: "NOT_FOUND"}
	ErrConflict      = &Kind{code: "CONFLICT"}
	ErrUnprocessable = &Kind{code: "UNPROCESSABLE"}
	ErrUpstream      = &Kind{code: "UPSTREAM"}
	ErrInternal      = &Kind{code: "INTERNAL"}
)

var kinds = []*Kind{ErrValidation, ErrNotFound, ErrConflict, ErrUnprocessable, ErrUpstream}

// New は kind でマークした番兵エラーを生成します。
// 外側の層が番兵自身のマークになるため、同じ種別の番兵同士は一致しません。
func New(kind *Kind, msg string) error {
	return errors.WithStackDepth(errors.Mark(errors.New(msg), kind), 1)
}

// WrapAs は err に msg を前置し、番兵 target とその種別の両方でマークします。
func WrapAs(err, target error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.WrapWithDepth(1, err, msg)
	if k := KindOf(target); k != ErrInternal {
		wrapped = errors.Mark(wrapped, k)
	}
	return errors.Mark(wrapped, target)
}

// Wrap は既存のエラーに kind を付与します。
func Wrap(err error, kind *Kind, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.WrapWithDepth(1, err, msg), kind)
}

// KindOf は err に付与された種別を返します。該当しない場合は ErrInternal です。
func KindOf(err error) *Kind {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

type detailedError struct {
	cause   error
	details map[string]string
}

func (e *detailedError) Error() string { return e.cause.Error() }
func (e *detailedError) Unwrap() error { return e.cause }

// WithDetails はフィールド単位の詳細を err に付与します。
func WithDetails(err error, details map[string]string) error {
	if err == nil || len(details) == 0 {
		return err
	}
	return &detailedError{cause: err, details: details}
}

// DetailsOf は WithDetails で付与された詳細を返します。
func DetailsOf(err error) map[string]string {
	var de *detailedError
	if errors.As(err, &de) {
		return de.details
	}
	return nil
}
