package blob

import (
	"context"
	"io"
	"time"
)

// Store はバイナリ実体の保存先です。Delete は存在しないキーに対して nil を返します。
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Repository はバイナリ管理情報の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, meta *Metadata) (*Metadata, error)
	FindByID(ctx context.Context, id int64) (*Metadata, error)
	// Delete は行を削除し、削除前の内容を返します。
	Delete(ctx context.Context, id int64) (*Metadata, error)
}

// DeletionRepository は実体削除 outbox の永続化の抽象です。
type DeletionRepository interface {
	Enqueue(ctx context.Context, storageKey, reason string, availableAt time.Time) error
	// Claim は処理可能な行を行ロック付きで取得し、attempts を加算して locked_at を記録します。
	Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]*Deletion, error)
	Ack(ctx context.Context, id int64, completedAt time.Time) error
	Nack(ctx context.Context, id int64, lastError string, nextAttemptAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
}
