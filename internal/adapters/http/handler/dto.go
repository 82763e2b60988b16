package handler

import (
	"time"

	"github.com/ogurasousui/hrbank-api/internal/core/backup"
	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

// pageResponse は一覧系エンドポイント共通の応答です。
type pageResponse[T any] struct {
	Content       []T     `json:"content"`
	NextCursor    *string `json:"nextCursor"`
	NextIDAfter   *int64  `json:"nextIdAfter"`
	Size          int     `json:"size"`
	TotalElements int64   `json:"totalElements"`
	HasNext       bool    `json:"hasNext"`
}

func toPageResponse[T, U any](p pagination.Page[T], fn func(T) U) pageResponse[U] {
	mapped := pagination.Map(p, fn)
	resp := pageResponse[U]{
		Content:       mapped.Content,
		NextIDAfter:   mapped.NextIDAfter,
		Size:          mapped.Size,
		TotalElements: mapped.TotalElements,
		HasNext:       mapped.HasNext,
	}
	if mapped.NextCursor != "" {
		cursor := mapped.NextCursor
		resp.NextCursor = &cursor
	}
	return resp
}

type employeeResponse struct {
	ID             int64   `json:"id"`
	EmployeeNumber string  `json:"employeeNumber"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Position       *string `json:"position"`
	DepartmentID   int64   `json:"departmentId"`
	DepartmentName string  `json:"departmentName"`
	HireDate       *string `json:"hireDate"`
	Status         string  `json:"status"`
	ProfileImageID *int64  `json:"profileImageId"`
}

func toEmployeeResponse(e *employee.Employee) employeeResponse {
	return employeeResponse{
		ID:             e.ID,
		EmployeeNumber: e.EmployeeNumber,
		Name:           e.Name,
		Email:          e.Email,
		Position:       e.Position,
		DepartmentID:   e.DepartmentID,
		DepartmentName: e.DepartmentName,
		HireDate:       formatDate(e.HireDate),
		Status:         string(e.Status),
		ProfileImageID: e.ProfileBlobID,
	}
}

type departmentResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	EstablishedDate string `json:"establishedDate"`
	EmployeeCount   int64  `json:"employeeCount"`
}

func toDepartmentResponse(d *department.Department) departmentResponse {
	return departmentResponse{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		EstablishedDate: d.EstablishedDate.Format(dateLayout),
		EmployeeCount:   d.EmployeeCount,
	}
}

type changeLogResponse struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	EmployeeNumber string    `json:"employeeNumber"`
	Memo           string    `json:"memo"`
	IPAddress      string    `json:"ipAddress"`
	At             time.Time `json:"at"`
}

func toChangeLogResponse(c *changelog.ChangeLog) changeLogResponse {
	return changeLogResponse{
		ID:             c.ID,
		Type:           string(c.Type),
		EmployeeNumber: c.EmployeeNumber,
		Memo:           c.Memo,
		IPAddress:      c.IPAddress,
		At:             c.UpdatedAt,
	}
}

type diffResponse struct {
	PropertyName string  `json:"propertyName"`
	Before       *string `json:"before"`
	After        *string `json:"after"`
}

func toDiffResponse(d changelog.Diff) diffResponse {
	return diffResponse{PropertyName: d.PropertyName, Before: d.Before, After: d.After}
}

type backupResponse struct {
	ID        int64      `json:"id"`
	Worker    string     `json:"worker"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
	Status    string     `json:"status"`
	FileID    *int64     `json:"fileId"`
}

func toBackupResponse(b *backup.Backup) backupResponse {
	return backupResponse{
		ID:        b.ID,
		Worker:    b.Worker,
		StartedAt: b.StartedAt,
		EndedAt:   b.EndedAt,
		Status:    string(b.Status),
		FileID:    b.ArtifactBlobID,
	}
}
