package department

import "time"

// Department は部署エンティティです。
type Department struct {
	ID              int64
	Name            string
	Description     string
	EstablishedDate time.Time
	// EmployeeCount は所属社員数です。読み取り時のみ設定されます。
	EmployeeCount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
