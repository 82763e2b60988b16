package backup

import (
	"context"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

// Repository はバックアップ永続化の抽象です。
type Repository interface {
	// InsertInProgress は IN_PROGRESS 行を追加します。既に IN_PROGRESS 行があれば
	// 追加せずにその行を created=false で返します。
	InsertInProgress(ctx context.Context, worker string, startedAt time.Time) (b *Backup, created bool, err error)
	// InsertSkipped は開始と同時に終了した SKIPPED 行を追加します。
	InsertSkipped(ctx context.Context, worker string, at time.Time) (*Backup, error)
	// Complete と Fail は IN_PROGRESS 行のみを遷移させ、それ以外は ErrNotInProgress です。
	Complete(ctx context.Context, id int64, endedAt time.Time, artifactBlobID int64) (*Backup, error)
	Fail(ctx context.Context, id int64, endedAt time.Time) (*Backup, error)
	FindByID(ctx context.Context, id int64) (*Backup, error)
	// FindLatest は開始日時が最も新しい行を返します。status が nil なら状態を問いません。
	FindLatest(ctx context.Context, status *Status) (*Backup, error)
	HasInProgress(ctx context.Context) (bool, error)
	// LatestChangeAt は社員と変更履歴の更新日時の最大値です。一件もなければ nil です。
	LatestChangeAt(ctx context.Context) (*time.Time, error)
	Page(ctx context.Context, filter SearchFilter, q pagination.Query) ([]*Backup, error)
	Count(ctx context.Context, filter SearchFilter) (int64, error)
}

// EmployeeSource はバックアップ対象の社員を id 昇順で読み出します。
type EmployeeSource interface {
	ListAfterID(ctx context.Context, afterID int64, limit int) ([]*employee.Employee, error)
}

// SearchFilter は一覧取得用フィルタです。
type SearchFilter struct {
	// Worker は部分一致です。
	Worker string
	Status *Status
	// StartedAtFrom 以上 StartedAtTo 未満です。
	StartedAtFrom *time.Time
	StartedAtTo   *time.Time
}
