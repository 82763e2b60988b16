package blob

import (
	"io"
	"time"
)

// Metadata は保存済みバイナリの管理情報です。実体は Store 上の StorageKey にあります。
type Metadata struct {
	ID          int64
	FileName    string
	ContentType string
	Size        int64
	StorageKey  string
	CreatedAt   time.Time
}

// Upload は保存対象のバイナリです。
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// Deletion は Store 上の実体削除を待つ outbox の行です。
type Deletion struct {
	ID         int64
	StorageKey string
	Reason     string
	Attempts   int
	CreatedAt  time.Time
}

// キーの名前空間です。
const (
	KindProfile = "profiles"
	KindBackup  = "backups"
)

// 削除理由です。
const (
	ReasonEmployeeDeleted = "employee_deleted"
	ReasonProfileReplaced = "profile_replaced"
	ReasonAbandonedUpload = "abandoned_upload"
	ReasonBackupFailed    = "backup_failed"
)
