package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

const blobColumns = `id, file_name, content_type, size, storage_key, created_at`

// BlobRepository は binary_contents テーブルを利用したバイナリ管理情報の実装です。
type BlobRepository struct {
	pool pgdb.Queryer
}

// NewBlobRepository は BlobRepository を生成します。
func NewBlobRepository(pool pgdb.Queryer) *BlobRepository {
	return &BlobRepository{pool: pool}
}

// Create は管理情報を登録します。
func (r *BlobRepository) Create(ctx context.Context, meta *blob.Metadata) (*blob.Metadata, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO binary_contents (file_name, content_type, size, storage_key, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+blobColumns+`
    `, meta.FileName, meta.ContentType, meta.Size, meta.StorageKey, meta.CreatedAt)

	created, err := scanBlob(row)
	if err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == uniqueViolationCode {
			return nil, blob.ErrInvalidKey
		}
		return nil, err
	}
	return created, nil
}

// FindByID は ID で管理情報を取得します。
func (r *BlobRepository) FindByID(ctx context.Context, id int64) (*blob.Metadata, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	return scanBlob(exec.QueryRow(ctx, `
        SELECT `+blobColumns+`
          FROM binary_contents
         WHERE id = $1
    `, id))
}

// Delete は管理情報を削除し、削除前の内容を返します。
func (r *BlobRepository) Delete(ctx context.Context, id int64) (*blob.Metadata, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	return scanBlob(exec.QueryRow(ctx, `
        DELETE FROM binary_contents
         WHERE id = $1
        RETURNING `+blobColumns+`
    `, id))
}

func scanBlob(row pgx.Row) (*blob.Metadata, error) {
	var m blob.Metadata
	if err := row.Scan(&m.ID, &m.FileName, &m.ContentType, &m.Size, &m.StorageKey, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blob.ErrBlobNotFound
		}
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
