package department

import (
	"context"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

// Repository は部署エンティティの永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, department *Department) (*Department, error)
	Update(ctx context.Context, department *Department) (*Department, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Department, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	HasEmployees(ctx context.Context, id int64) (bool, error)
	// Page は q に従って最大 q.Size+1 件を返します。
	Page(ctx context.Context, filter SearchFilter, q pagination.Query) ([]*Department, error)
	Count(ctx context.Context, filter SearchFilter) (int64, error)
}

// SearchFilter は一覧取得時の検索条件を表します。
type SearchFilter struct {
	// NameOrDescription は名前または説明への部分一致です。
	NameOrDescription string
}
