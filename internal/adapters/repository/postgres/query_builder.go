package postgres

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// sqlBuilder は "$N" プレースホルダを採番しながら WHERE 句を組み立てます。
type sqlBuilder struct {
	args       []any
	conditions []string
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(condition string) {
	b.conditions = append(b.conditions, condition)
}

func (b *sqlBuilder) whereClause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// contains は columns のいずれかに value を大文字小文字を区別せず部分一致させます。
func (b *sqlBuilder) contains(value string, columns ...string) {
	if value == "" {
		return
	}
	p := b.arg("%" + likeEscaper.Replace(value) + "%")
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, c+" ILIKE "+p+` ESCAPE '\'`)
	}
	if len(parts) == 1 {
		b.where(parts[0])
		return
	}
	b.where("(" + strings.Join(parts, " OR ") + ")")
}

func (b *sqlBuilder) equals(column string, value any) {
	b.where(column + " = " + b.arg(value))
}

// between は from 以上 to 未満の半開区間です。
func (b *sqlBuilder) between(column string, from, to *time.Time) {
	if from != nil {
		b.where(column + " >= " + b.arg(*from))
	}
	if to != nil {
		b.where(column + " < " + b.arg(*to))
	}
}

// seek は q.After より後ろの行に絞り込むキーセット条件を追加します。
//
// 昇順は NULL を末尾に、降順は NULL を先頭に置く並びを前提とします。
func (b *sqlBuilder) seek(q pagination.Query, idColumn string) {
	if q.After == nil {
		return
	}
	col := q.Key.Column
	id := b.arg(q.After.ID)

	if q.After.Value == nil {
		if q.Direction == pagination.Asc {
			b.where("(" + col + " IS NULL AND " + idColumn + " > " + id + ")")
		} else {
			b.where("((" + col + " IS NULL AND " + idColumn + " < " + id + ") OR " + col + " IS NOT NULL)")
		}
		return
	}

	v := b.arg(q.After.Value)
	if q.Direction == pagination.Asc {
		cond := col + " > " + v + " OR (" + col + " = " + v + " AND " + idColumn + " > " + id + ")"
		if q.Key.Nullable {
			cond += " OR " + col + " IS NULL"
		}
		b.where("(" + cond + ")")
		return
	}
	b.where("(" + col + " < " + v + " OR (" + col + " = " + v + " AND " + idColumn + " < " + id + "))")
}

// limit は次ページ判定用に 1 件多く取得する LIMIT 句です。
func (b *sqlBuilder) limit(q pagination.Query) string {
	return " LIMIT " + b.arg(q.Size+1)
}

func orderBy(q pagination.Query, idColumn string) string {
	dir := " ASC"
	nulls := " NULLS LAST"
	if q.Direction == pagination.Desc {
		dir = " DESC"
		nulls = " NULLS FIRST"
	}
	if !q.Key.Nullable {
		nulls = ""
	}
	return " ORDER BY " + q.Key.Column + dir + nulls + ", " + idColumn + dir
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func datePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
