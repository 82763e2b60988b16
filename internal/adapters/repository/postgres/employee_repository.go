package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	pgdb "github.com/ogurasousui/hrbank-api/internal/platform/db/postgres"
)

const employeeColumns = `e.id, e.employee_number, e.name, e.email, e.position, e.hire_date, e.status,
               e.department_id, d.name, e.profile_blob_id, e.created_at, e.updated_at`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH e AS (
            INSERT INTO employees (employee_number, name, email, position, hire_date, status, department_id, profile_blob_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            RETURNING *
        )
        SELECT `+employeeColumns+`
          FROM e
          JOIN departments d ON d.id = e.department_id
    `, e.EmployeeNumber, e.Name, e.Email, nullableString(e.Position), nullableDate(e.HireDate), string(e.Status),
		e.DepartmentID, nullableInt64(e.ProfileBlobID), e.CreatedAt, e.UpdatedAt)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は社員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH e AS (
            UPDATE employees
               SET employee_number = $1,
                   name = $2,
                   email = $3,
                   position = $4,
                   hire_date = $5,
                   status = $6,
                   department_id = $7,
                   profile_blob_id = $8,
                   updated_at = $9
             WHERE id = $10
            RETURNING *
        )
        SELECT `+employeeColumns+`
          FROM e
          JOIN departments d ON d.id = e.department_id
    `, e.EmployeeNumber, e.Name, e.Email, nullableString(e.Position), nullableDate(e.HireDate), string(e.Status),
		e.DepartmentID, nullableInt64(e.ProfileBlobID), e.UpdatedAt, e.ID)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// Delete は社員を削除します。
func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees e
          JOIN departments d ON d.id = e.department_id
         WHERE e.id = $1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// ExistsByEmail はメールアドレスの重複を大文字小文字を区別せずに確認します。
func (r *EmployeeRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM employees WHERE lower(email) = lower($1) AND id <> $2)
    `, email, excludeID).Scan(&exists)
	return exists, err
}

// ExistsByEmployeeNumber は社員番号の重複を確認します。
func (r *EmployeeRepository) ExistsByEmployeeNumber(ctx context.Context, number string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM employees WHERE employee_number = $1)
    `, number).Scan(&exists)
	return exists, err
}

// NextEmployeeNumber はシーケンスから EMP-<年>-<連番> 形式の社員番号を採番します。
func (r *EmployeeRepository) NextEmployeeNumber(ctx context.Context, at time.Time) (string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	if err := exec.QueryRow(ctx, `SELECT nextval('employee_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("EMP-%d-%06d", at.Year(), n), nil
}

// Page はフィルタとキーセットに従って最大 q.Size+1 件の社員を返します。
func (r *EmployeeRepository) Page(ctx context.Context, filter employee.SearchFilter, q pagination.Query) ([]*employee.Employee, error) {
	var b sqlBuilder
	applyEmployeeFilter(&b, filter)
	b.seek(q, "e.id")
	limit := b.limit(q)

	query := `
        SELECT ` + employeeColumns + `
          FROM employees e
          JOIN departments d ON d.id = e.department_id` + b.whereClause() + orderBy(q, "e.id") + limit

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, b.args...)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	var employees []*employee.Employee
	for rows.Next() {
		found, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, found)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return employees, nil
}

// Count はカーソルを無視してフィルタに一致する件数を返します。
func (r *EmployeeRepository) Count(ctx context.Context, filter employee.SearchFilter) (int64, error) {
	var b sqlBuilder
	applyEmployeeFilter(&b, filter)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `
        SELECT count(*)
          FROM employees e
          JOIN departments d ON d.id = e.department_id`+b.whereClause(), b.args...).Scan(&n)
	return n, err
}

// CountBy は状態と入社日の範囲で件数を返します。
func (r *EmployeeRepository) CountBy(ctx context.Context, filter employee.CountFilter) (int64, error) {
	var b sqlBuilder
	if filter.Status != nil {
		b.equals("e.status", string(*filter.Status))
	}
	b.between("e.hire_date", filter.FromDate, filter.ToDate)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	err := exec.QueryRow(ctx, `SELECT count(*) FROM employees e`+b.whereClause(), b.args...).Scan(&n)
	return n, err
}

// ListAfterID は id 昇順で afterID より後ろの社員を返します。
func (r *EmployeeRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees e
          JOIN departments d ON d.id = e.department_id
         WHERE e.id > $1
         ORDER BY e.id ASC
         LIMIT $2
    `, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []*employee.Employee
	for rows.Next() {
		found, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, found)
	}
	return employees, rows.Err()
}

func applyEmployeeFilter(b *sqlBuilder, f employee.SearchFilter) {
	b.contains(f.NameOrEmail, "e.name", "e.email")
	b.contains(f.DepartmentName, "d.name")
	b.contains(f.Position, "e.position")
	if f.EmployeeNumber != "" {
		b.equals("e.employee_number", f.EmployeeNumber)
	}
	b.between("e.hire_date", f.HireDateFrom, f.HireDateTo)
	if f.Status != nil {
		b.equals("e.status", string(*f.Status))
	}
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e         employee.Employee
		status    string
		position  sql.NullString
		hireDate  sql.NullTime
		profileID sql.NullInt64
	)

	if err := row.Scan(
		&e.ID,
		&e.EmployeeNumber,
		&e.Name,
		&e.Email,
		&position,
		&hireDate,
		&status,
		&e.DepartmentID,
		&e.DepartmentName,
		&profileID,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	e.Status = employee.Status(status)
	e.Position = stringPtr(position)
	e.HireDate = datePtr(hireDate)
	e.ProfileBlobID = int64Ptr(profileID)
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	if pgErr, ok := pgError(err); ok {
		switch pgErr.Code {
		case uniqueViolationCode:
			switch pgErr.ConstraintName {
			case "employees_email_lower_key":
				return employee.ErrEmailAlreadyExists
			case "employees_employee_number_key":
				return employee.ErrEmployeeNumberAlreadyExists
			}
		case foreignKeyViolationCode:
			if pgErr.ConstraintName == "employees_department_id_fkey" {
				return employee.ErrDepartmentNotFound
			}
		case checkViolationCode:
			if pgErr.ConstraintName == "employees_status_check" {
				return employee.ErrInvalidStatus
			}
		}
	}
	return err
}
