package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/hrbank-api/internal/core/backup"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

const backupColumns = `b.id, b.worker, b.status, b.started_at, b.ended_at, b.artifact_blob_id`

// BackupRepository は PostgreSQL を利用したバックアップ永続化の実装です。
// IN_PROGRESS 行の一意性は部分一意インデックス backups_single_in_progress_key で保証します。
type BackupRepository struct {
	pool pgdb.Queryer
}

// NewBackupRepository は BackupRepository を生成します。
func NewBackupRepository(pool pgdb.Queryer) *BackupRepository {
	return &BackupRepository{pool: pool}
}

// InsertInProgress は IN_PROGRESS 行を追加します。競合した場合は既存の IN_PROGRESS 行を返します。
func (r *BackupRepository) InsertInProgress(ctx context.Context, worker string, startedAt time.Time) (*backup.Backup, bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO backups AS b (worker, status, started_at)
        VALUES ($1, 'IN_PROGRESS', $2)
        ON CONFLICT (status) WHERE status = 'IN_PROGRESS' DO NOTHING
        RETURNING `+backupColumns+`
    `, worker, startedAt)

	created, err := scanBackup(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, backup.ErrBackupNotFound) {
		return nil, false, err
	}

	existing, err := scanBackup(exec.QueryRow(ctx, `
        SELECT `+backupColumns+`
          FROM backups b
         WHERE b.status = 'IN_PROGRESS'
    `))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// InsertSkipped は SKIPPED 行を追加します。
func (r *BackupRepository) InsertSkipped(ctx context.Context, worker string, at time.Time) (*backup.Backup, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO backups AS b (worker, status, started_at, ended_at)
        VALUES ($1, 'SKIPPED', $2, $2)
        RETURNING `+backupColumns+`
    `, worker, at)
	return scanBackup(row)
}

// Complete は IN_PROGRESS 行を COMPLETED に遷移させます。
func (r *BackupRepository) Complete(ctx context.Context, id int64, endedAt time.Time, artifactBlobID int64) (*backup.Backup, error) {
	return r.transition(ctx, id, backup.StatusCompleted, endedAt, &artifactBlobID)
}

// Fail は IN_PROGRESS 行を FAILED に遷移させます。
func (r *BackupRepository) Fail(ctx context.Context, id int64, endedAt time.Time) (*backup.Backup, error) {
	return r.transition(ctx, id, backup.StatusFailed, endedAt, nil)
}

func (r *BackupRepository) transition(ctx context.Context, id int64, to backup.Status, endedAt time.Time, artifactBlobID *int64) (*backup.Backup, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE backups AS b
           SET status = $1,
               ended_at = $2,
               artifact_blob_id = $3
         WHERE b.id = $4
           AND b.status = 'IN_PROGRESS'
        RETURNING `+backupColumns+`
    `, string(to), endedAt, nullableInt64(artifactBlobID), id)

	updated, err := scanBackup(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, backup.ErrBackupNotFound) {
		return nil, err
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, backup.ErrNotInProgress
}

// FindByID は ID でバックアップを取得します。
func (r *BackupRepository) FindByID(ctx context.Context, id int64) (*backup.Backup, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	return scanBackup(exec.QueryRow(ctx, `
        SELECT `+backupColumns+`
          FROM backups b
         WHERE b.id = $1
    `, id))
}

// FindLatest は開始日時が最も新しいバックアップを返します。
func (r *BackupRepository) FindLatest(ctx context.Context, status *backup.Status) (*backup.Backup, error) {
	var b sqlBuilder
	if status != nil {
		b.equals("b.status", string(*status))
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	return scanBackup(exec.QueryRow(ctx, `
        SELECT `+backupColumns+`
          FROM backups b`+b.whereClause()+`
         ORDER BY b.started_at DESC, b.id DESC
         LIMIT 1
    `, b.args...))
}

// HasInProgress は IN_PROGRESS 行があるかを返します。
func (r *BackupRepository) HasInProgress(ctx context.Context) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM backups WHERE status = 'IN_PROGRESS')`).Scan(&exists)
	return exists, err
}

// LatestChangeAt は社員と変更履歴の更新日時の最大値を返します。削除は変更履歴に現れます。
func (r *BackupRepository) LatestChangeAt(ctx context.Context) (*time.Time, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var latest sql.NullTime
	if err := exec.QueryRow(ctx, `
        SELECT GREATEST(
            (SELECT max(updated_at) FROM employees),
            (SELECT max(updated_at) FROM change_logs)
        )
    `).Scan(&latest); err != nil {
		return nil, err
	}
	return timePtr(latest), nil
}

// Page はフィルタとキーセットに従って最大 q.Size+1 件のバックアップを返します。
func (r *BackupRepository) Page(ctx context.Context, filter backup.SearchFilter, q pagination.Query) ([]*backup.Backup, error) {
	var b sqlBuilder
	applyBackupFilter(&b, filter)
	b.seek(q, "b.id")
	limit := b.limit(q)

	query := `
        SELECT ` + backupColumns + `
          FROM backups b` + b.whereClause() + orderBy(q, "b.id") + limit

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var backups []*backup.Backup
	for rows.Next() {
		found, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		backups = append(backups, found)
	}
	return backups, rows.Err()
}

// Count はフィルタに一致する件数を返します。
func (r *BackupRepository) Count(ctx context.Context, filter backup.SearchFilter) (int64, error) {
	var b sqlBuilder
	applyBackupFilter(&b, filter)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `SELECT count(*) FROM backups b`+b.whereClause(), b.args...).Scan(&n)
	return n, err
}

func applyBackupFilter(b *sqlBuilder, f backup.SearchFilter) {
	b.contains(f.Worker, "b.worker")
	if f.Status != nil {
		b.equals("b.status", string(*f.Status))
	}
	b.between("b.started_at", f.StartedAtFrom, f.StartedAtTo)
}

func scanBackup(row pgx.Row) (*backup.Backup, error) {
	var (
		b        backup.Backup
		status   string
		endedAt  sql.NullTime
		artifact sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.Worker, &status, &b.StartedAt, &endedAt, &artifact); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, backup.ErrBackupNotFound
		}
		return nil, err
	}
	b.Status = backup.Status(status)
	b.StartedAt = b.StartedAt.UTC()
	b.EndedAt = timePtr(endedAt)
	b.ArtifactBlobID = int64Ptr(artifact)
	return &b, nil
}
