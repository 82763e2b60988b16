package backup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ogurasousui/hrbank-api/internal/core/employee"
)

const artifactDateLayout = "2006-01-02"

var artifactHeader = []string{"id", "employeeNumber", "name", "email", "position", "departmentName", "hireDate", "status"}

// writeCSV は社員を id 昇順で batchSize 件ずつ読み出し、RFC 4180 形式で w に書き込みます。
// 書き込んだ社員の件数を返します。
func writeCSV(ctx context.Context, w io.Writer, src EmployeeSource, batchSize int) (int, error) {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(artifactHeader); err != nil {
		return 0, fmt.Errorf("backup: write header: %w", err)
	}

	var (
		afterID int64
		written int
	)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		batch, err := src.ListAfterID(ctx, afterID, batchSize)
		if err != nil {
			return written, fmt.Errorf("backup: list employees after %d: %w", afterID, err)
		}
		for _, e := range batch {
			if err := cw.Write(artifactRecord(e)); err != nil {
				return written, fmt.Errorf("backup: write employee %d: %w", e.ID, err)
			}
			afterID = e.ID
			written++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return written, fmt.Errorf("backup: flush: %w", err)
		}
		if len(batch) < batchSize {
			return written, nil
		}
	}
}

func artifactRecord(e *employee.Employee) []string {
	var position, hireDate string
	if e.Position != nil {
		position = *e.Position
	}
	if e.HireDate != nil {
		hireDate = e.HireDate.UTC().Format(artifactDateLayout)
	}
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.EmployeeNumber,
		e.Name,
		e.Email,
		position,
		e.DepartmentName,
		hireDate,
		string(e.Status),
	}
}
