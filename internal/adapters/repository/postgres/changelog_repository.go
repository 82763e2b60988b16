package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

const changeLogColumns = `c.id, c.type, c.employee_number, c.memo, c.ip_address, c.updated_at`

// ChangeLogRepository は PostgreSQL を利用した変更履歴永続化の実装です。
type ChangeLogRepository struct {
	pool pgdb.Queryer
}

// NewChangeLogRepository は ChangeLogRepository を生成します。
func NewChangeLogRepository(pool pgdb.Queryer) *ChangeLogRepository {
	return &ChangeLogRepository{pool: pool}
}

// Create はヘッダと差分を登録します。差分は 1 回の一括送信で挿入します。
func (r *ChangeLogRepository) Create(ctx context.Context, log *changelog.ChangeLog, diffs []changelog.Diff) (*changelog.ChangeLog, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO change_logs AS c (type, employee_number, memo, ip_address, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+changeLogColumns+`
    `, string(log.Type), log.EmployeeNumber, log.Memo, log.IPAddress, log.UpdatedAt)

	created, err := scanChangeLog(row)
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 {
		return created, nil
	}

	names := make([]string, len(diffs))
	befores := make([]*string, len(diffs))
	afters := make([]*string, len(diffs))
	for i, d := range diffs {
		names[i] = d.PropertyName
		befores[i] = d.Before
		afters[i] = d.After
	}

	if _, err := exec.Exec(ctx, `
        INSERT INTO change_log_diffs (change_log_id, property_name, before_value, after_value)
        SELECT $1, t.property_name, t.before_value, t.after_value
          FROM unnest($2::text[], $3::text[], $4::text[]) WITH ORDINALITY AS t(property_name, before_value, after_value, ord)
         ORDER BY t.ord
    `, created.ID, names, befores, afters); err != nil {
		return nil, err
	}
	return created, nil
}

// FindByID は ID でヘッダを取得します。
func (r *ChangeLogRepository) FindByID(ctx context.Context, id int64) (*changelog.ChangeLog, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+changeLogColumns+`
          FROM change_logs c
         WHERE c.id = $1
    `, id)
	return scanChangeLog(row)
}

// ListDiffs は差分を登録順で返します。
func (r *ChangeLogRepository) ListDiffs(ctx context.Context, changeLogID int64) ([]changelog.Diff, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, change_log_id, property_name, before_value, after_value
          FROM change_log_diffs
         WHERE change_log_id = $1
         ORDER BY id ASC
    `, changeLogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diffs []changelog.Diff
	for rows.Next() {
		var (
			d             changelog.Diff
			before, after sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.ChangeLogID, &d.PropertyName, &before, &after); err != nil {
			return nil, err
		}
		d.Before = stringPtr(before)
		d.After = stringPtr(after)
		diffs = append(diffs, d)
	}
	return diffs, rows.Err()
}

// Page はフィルタとキーセットに従って最大 q.Size+1 件のヘッダを返します。
func (r *ChangeLogRepository) Page(ctx context.Context, filter changelog.SearchFilter, q pagination.Query) ([]*changelog.ChangeLog, error) {
	var b sqlBuilder
	applyChangeLogFilter(&b, filter)
	b.seek(q, "c.id")
	limit := b.limit(q)

	query := `
        SELECT ` + changeLogColumns + `
          FROM change_logs c` + b.whereClause() + orderBy(q, "c.id") + limit

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*changelog.ChangeLog
	for rows.Next() {
		found, err := scanChangeLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, found)
	}
	return logs, rows.Err()
}

// Count はフィルタに一致する件数を返します。
func (r *ChangeLogRepository) Count(ctx context.Context, filter changelog.SearchFilter) (int64, error) {
	var b sqlBuilder
	applyChangeLogFilter(&b, filter)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `SELECT count(*) FROM change_logs c`+b.whereClause(), b.args...).Scan(&n)
	return n, err
}

func applyChangeLogFilter(b *sqlBuilder, f changelog.SearchFilter) {
	b.contains(f.EmployeeNumber, "c.employee_number")
	b.contains(f.Memo, "c.memo")
	b.contains(f.IPAddress, "c.ip_address")
	if f.Type != nil {
		b.equals("c.type", string(*f.Type))
	}
	b.between("c.updated_at", f.AtFrom, f.AtTo)
}

func scanChangeLog(row pgx.Row) (*changelog.ChangeLog, error) {
	var (
		c   changelog.ChangeLog
		typ string
	)
	if err := row.Scan(&c.ID, &typ, &c.EmployeeNumber, &c.Memo, &c.IPAddress, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, changelog.ErrChangeLogNotFound
		}
		return nil, err
	}
	c.Type = changelog.Type(typ)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
