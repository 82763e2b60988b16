package changelog

import (
	"context"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

// Repository は変更履歴の永続化の抽象です。変更履歴は追記のみで、更新・削除は提供しません。
type Repository interface {
	// Create はヘッダと差分を登録します。呼び出し元のトランザクションに参加します。
	Create(ctx context.Context, log *ChangeLog, diffs []Diff) (*ChangeLog, error)
	FindByID(ctx context.Context, id int64) (*ChangeLog, error)
	// ListDiffs は id 昇順で差分を返します。
	ListDiffs(ctx context.Context, changeLogID int64) ([]Diff, error)
	Page(ctx context.Context, filter SearchFilter, q pagination.Query) ([]*ChangeLog, error)
	Count(ctx context.Context, filter SearchFilter) (int64, error)
}

// SearchFilter は変更履歴の検索条件です。文字列は部分一致、Type は完全一致です。
type SearchFilter struct {
	EmployeeNumber string
	Memo           string
	IPAddress      string
	Type           *Type
	// AtFrom 以上 AtTo 未満です。
	AtFrom *time.Time
	AtTo   *time.Time
}
