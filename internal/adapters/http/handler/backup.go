package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/backup"
)

// BackupHandler は /api/backups の HTTP 実装です。
type BackupHandler struct {
	svc backup.UseCase
}

// NewBackupHandler は BackupHandler を生成します。
func NewBackupHandler(svc backup.UseCase) *BackupHandler {
	return &BackupHandler{svc: svc}
}

// Create は呼び出し元のアドレスを作業者としてバックアップを実行します。
// 失敗した場合も FAILED の行を 200 で返します。
func (h *BackupHandler) Create(c echo.Context) error {
	run, err := h.svc.Create(c.Request().Context(), clientIP(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBackupResponse(run))
}

// List はバックアップ履歴をカーソルページングで返します。
func (h *BackupHandler) List(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	status, err := queryBackupStatus(c)
	if err != nil {
		return err
	}
	from, err := queryInstant(c, "startedAtFrom")
	if err != nil {
		return err
	}
	to, err := queryInstant(c, "startedAtTo")
	if err != nil {
		return err
	}

	result, err := h.svc.FindAll(c.Request().Context(), backup.SearchInput{
		Filter: backup.SearchFilter{
			Worker:        queryString(c, "worker"),
			Status:        status,
			StartedAtFrom: from,
			StartedAtTo:   to,
		},
		Page: page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(result, toBackupResponse))
}

// Latest は最新のバックアップを返します。status で絞り込めます。
func (h *BackupHandler) Latest(c echo.Context) error {
	status, err := queryBackupStatus(c)
	if err != nil {
		return err
	}
	found, err := h.svc.GetLatest(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBackupResponse(found))
}

func queryBackupStatus(c echo.Context) (*backup.Status, error) {
	raw := queryString(c, "status")
	if raw == "" {
		return nil, nil
	}
	s, err := backup.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
