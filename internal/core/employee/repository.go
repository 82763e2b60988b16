package employee

import (
	"context"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

// Repository は社員永続化の抽象です。
// 読み取り系は DepartmentName を補完して返します。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Employee, error)
	// ExistsByEmail は大文字小文字を区別せずに比較します。excludeID の社員は除外します。
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	ExistsByEmployeeNumber(ctx context.Context, number string) (bool, error)
	// NextEmployeeNumber は呼び出しごとに一意な社員番号を採番します。
	NextEmployeeNumber(ctx context.Context, at time.Time) (string, error)
	Page(ctx context.Context, filter SearchFilter, q pagination.Query) ([]*Employee, error)
	Count(ctx context.Context, filter SearchFilter) (int64, error)
	CountBy(ctx context.Context, filter CountFilter) (int64, error)
	// ListAfterID は id 昇順で afterID より後ろの社員を最大 limit 件返します。
	ListAfterID(ctx context.Context, afterID int64, limit int) ([]*Employee, error)
}

// SearchFilter は一覧取得用フィルタです。
type SearchFilter struct {
	// NameOrEmail は名前またはメールへの大文字小文字を区別しない部分一致です。
	NameOrEmail    string
	DepartmentName string
	Position       string
	// EmployeeNumber は完全一致です。
	EmployeeNumber string
	// HireDateFrom 以上 HireDateTo 未満です。
	HireDateFrom *time.Time
	HireDateTo   *time.Time
	Status       *Status
}

// CountFilter は件数取得用フィルタです。
type CountFilter struct {
	Status   *Status
	FromDate *time.Time
	ToDate   *time.Time
}
