package handler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

const internalErrorMessage = "internal server error"

// errorResponse は全エンドポイント共通のエラー本文です。
type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func statusOf(kind *apperr.Kind) int {
	switch kind {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrUnprocessable:
		return http.StatusUnprocessableEntity
	case apperr.ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// codeOfHTTPStatus は echo 自身が返すエラー (ルーティング、本文サイズ超過など) のコードです。
func codeOfHTTPStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return apperr.ErrNotFound.Code()
	case status >= 500:
		return apperr.ErrInternal.Code()
	default:
		return apperr.ErrValidation.Code()
	}
}

// ErrorHandler はハンドラから返されたエラーを種別に応じたステータスと本文に変換します。
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		logger.FromContext(c.Request().Context()).Warn().Err(writeErr).Msg("write error response")
	}
}

func toErrorResponse(err error) (int, errorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && he.Code < http.StatusInternalServerError {
			msg = s
		}
		return he.Code, errorResponse{Code: codeOfHTTPStatus(he.Code), Message: msg}
	}

	kind := apperr.KindOf(err)
	status := statusOf(kind)
	if kind == apperr.ErrInternal {
		return status, errorResponse{Code: kind.Code(), Message: internalErrorMessage}
	}
	return status, errorResponse{Code: kind.Code(), Message: err.Error(), Details: apperr.DetailsOf(err)}
}
