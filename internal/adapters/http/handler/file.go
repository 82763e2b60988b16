package handler

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

// FileHandler は保存済みバイナリのダウンロードを提供します。
type FileHandler struct {
	files blob.UseCase
}

// NewFileHandler は FileHandler を生成します。
func NewFileHandler(files blob.UseCase) *FileHandler {
	return &FileHandler{files: files}
}

// Download は実体を添付ファイルとして返します。
func (h *FileHandler) Download(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	meta, body, err := h.files.Open(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer func() {
		if err := body.Close(); err != nil {
			logger.FromContext(c.Request().Context()).Warn().Err(err).Int64("file_id", id).Msg("close download body")
		}
	}()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": meta.FileName}))
	if meta.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(meta.Size, 10))
	}
	return c.Stream(http.StatusOK, meta.ContentType, body)
}
