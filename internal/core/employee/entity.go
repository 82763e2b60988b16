package employee

import (
	"strings"
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
)

// Status は社員の在籍状態を表します。退職は状態であり、削除ではありません。
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusOnLeave  Status = "ON_LEAVE"
	StatusResigned Status = "RESIGNED"
)

// ParseStatus は大文字小文字を区別せずに状態を解釈します。
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Valid は定義済みの状態かを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOnLeave, StatusResigned:
		return true
	default:
		return false
	}
}

// Employee は社員エンティティです。
type Employee struct {
	ID             int64
	EmployeeNumber string
	Name           string
	Email          string
	Position       *string
	HireDate       *time.Time
	Status         Status
	DepartmentID   int64
	// DepartmentName は読み取り時に部署から補完されます。
	DepartmentName string
	ProfileBlobID  *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot は変更履歴の差分計算用の状態を返します。
func (e *Employee) Snapshot() changelog.Snapshot {
	return changelog.Snapshot{
		EmployeeNumber: e.EmployeeNumber,
		Name:           e.Name,
		Email:          e.Email,
		Position:       e.Position,
		DepartmentName: e.DepartmentName,
		HireDate:       e.HireDate,
		Status:         string(e.Status),
	}
}
