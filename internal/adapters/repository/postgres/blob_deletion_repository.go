package postgres

import (
	"context"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

// BlobDeletionRepository は blob_deletions テーブルを利用した実体削除 outbox の実装です。
type BlobDeletionRepository struct {
	pool pgdb.Queryer
}

// NewBlobDeletionRepository は BlobDeletionRepository を生成します。
func NewBlobDeletionRepository(pool pgdb.Queryer) *BlobDeletionRepository {
	return &BlobDeletionRepository{pool: pool}
}

// Enqueue は削除対象を登録します。
func (r *BlobDeletionRepository) Enqueue(ctx context.Context, storageKey, reason string, availableAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO blob_deletions (storage_key, reason, available_at, created_at)
        VALUES ($1, $2, $3, $3)
    `, storageKey, reason, availableAt)
	return err
}

// Claim は処理可能な行を SKIP LOCKED で取得し、attempts と locked_at を更新します。
// lockCutoff より前にロックされた行は放棄されたものとして再取得します。
func (r *BlobDeletionRepository) Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]*blob.Deletion, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        WITH due AS (
            SELECT id
              FROM blob_deletions
             WHERE completed_at IS NULL
               AND attempts < $3
               AND available_at <= $1
               AND (locked_at IS NULL OR locked_at < $2)
             ORDER BY available_at ASC, id ASC
             LIMIT $4
               FOR UPDATE SKIP LOCKED
        )
        UPDATE blob_deletions AS d
           SET attempts = d.attempts + 1,
               locked_at = $1
          FROM due
         WHERE d.id = due.id
        RETURNING d.id, d.storage_key, d.reason, d.attempts, d.created_at
    `, now, lockCutoff, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []*blob.Deletion
	for rows.Next() {
		var d blob.Deletion
		if err := rows.Scan(&d.ID, &d.StorageKey, &d.Reason, &d.Attempts, &d.CreatedAt); err != nil {
			return nil, err
		}
		claimed = append(claimed, &d)
	}
	return claimed, rows.Err()
}

// Ack は削除完了を記録します。
func (r *BlobDeletionRepository) Ack(ctx context.Context, id int64, completedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        UPDATE blob_deletions
           SET completed_at = $1,
               locked_at = NULL,
               last_error = NULL
         WHERE id = $2
    `, completedAt, id)
	return err
}

// Nack は失敗を記録し、次の試行時刻を設定します。
func (r *BlobDeletionRepository) Nack(ctx context.Context, id int64, lastError string, nextAttemptAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        UPDATE blob_deletions
           SET last_error = $1,
               available_at = $2,
               locked_at = NULL
         WHERE id = $3
    `, lastError, nextAttemptAt, id)
	return err
}

// CountPending は未完了の行数を返します。試行回数を使い切った行も含みます。
func (r *BlobDeletionRepository) CountPending(ctx context.Context) (int64, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `SELECT count(*) FROM blob_deletions WHERE completed_at IS NULL`).Scan(&n)
	return n, err
}
