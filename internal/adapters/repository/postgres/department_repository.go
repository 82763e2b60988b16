package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

const departmentColumns = `d.id, d.name, d.description, d.established_date,
               (SELECT count(*) FROM employees e WHERE e.department_id = d.id),
               d.created_at, d.updated_at`

// DepartmentRepository は PostgreSQL を利用した部署永続化の実装です。
type DepartmentRepository struct {
	pool pgdb.Queryer
}

// NewDepartmentRepository は DepartmentRepository を生成します。
func NewDepartmentRepository(pool pgdb.Queryer) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// Create は部署を新規作成します。
func (r *DepartmentRepository) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH d AS (
            INSERT INTO departments (name, description, established_date, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING *
        )
        SELECT `+departmentColumns+`
          FROM d
    `, d.Name, d.Description, nullableDate(&d.EstablishedDate), d.CreatedAt, d.UpdatedAt)

	created, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return created, nil
}

// Update は部署情報を更新します。
func (r *DepartmentRepository) Update(ctx context.Context, d *department.Department) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH d AS (
            UPDATE departments
               SET name = $1,
                   description = $2,
                   established_date = $3,
                   updated_at = $4
             WHERE id = $5
            RETURNING *
        )
        SELECT `+departmentColumns+`
          FROM d
    `, d.Name, d.Description, nullableDate(&d.EstablishedDate), d.UpdatedAt, d.ID)

	updated, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return updated, nil
}

// Delete は部署を削除します。
func (r *DepartmentRepository) Delete(ctx context.Context, id int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return translateDepartmentPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return department.ErrDepartmentNotFound
	}
	return nil
}

// FindByID は ID で部署を取得します。
func (r *DepartmentRepository) FindByID(ctx context.Context, id int64) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+departmentColumns+`
          FROM departments d
         WHERE d.id = $1
    `, id)

	found, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return found, nil
}

// ExistsByName は部署名の重複を確認します。
func (r *DepartmentRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM departments WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// HasEmployees は部署に所属する社員がいるかを返します。
func (r *DepartmentRepository) HasEmployees(ctx context.Context, id int64) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE department_id = $1)`, id).Scan(&exists)
	return exists, err
}

// Page はフィルタとキーセットに従って最大 q.Size+1 件の部署を返します。
func (r *DepartmentRepository) Page(ctx context.Context, filter department.SearchFilter, q pagination.Query) ([]*department.Department, error) {
	var b sqlBuilder
	b.contains(filter.NameOrDescription, "d.name", "d.description")
	b.seek(q, "d.id")
	limit := b.limit(q)

	query := `
        SELECT ` + departmentColumns + `
          FROM departments d` + b.whereClause() + orderBy(q, "d.id") + limit

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []*department.Department
	for rows.Next() {
		found, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		departments = append(departments, found)
	}
	return departments, rows.Err()
}

// Count はフィルタに一致する件数を返します。
func (r *DepartmentRepository) Count(ctx context.Context, filter department.SearchFilter) (int64, error) {
	var b sqlBuilder
	b.contains(filter.NameOrDescription, "d.name", "d.description")

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `SELECT count(*) FROM departments d`+b.whereClause(), b.args...).Scan(&n)
	return n, err
}

func scanDepartment(row pgx.Row) (*department.Department, error) {
	var d department.Department
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.EstablishedDate,
		&d.EmployeeCount,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}
	d.EstablishedDate = d.EstablishedDate.UTC()
	return &d, nil
}

func translateDepartmentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return department.ErrDepartmentNotFound
	}
	if pgErr, ok := pgError(err); ok {
		switch {
		case pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == "departments_name_key":
			return department.ErrNameAlreadyExists
		case pgErr.Code == foreignKeyViolationCode && pgErr.ConstraintName == "employees_department_id_fkey":
			return department.ErrDepartmentInUse
		}
	}
	return err
}
