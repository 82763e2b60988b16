package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
)

// ChangeLogHandler は /api/change-logs の HTTP 実装です。
type ChangeLogHandler struct {
	svc changelog.UseCase
}

// NewChangeLogHandler は ChangeLogHandler を生成します。
func NewChangeLogHandler(svc changelog.UseCase) *ChangeLogHandler {
	return &ChangeLogHandler{svc: svc}
}

type registerChangeLogRequest struct {
	Type           string        `json:"type" validate:"required"`
	EmployeeNumber string        `json:"employeeNumber" validate:"required,max=50"`
	Memo           string        `json:"memo" validate:"max=500"`
	IPAddress      string        `json:"ipAddress" validate:"omitempty,max=64"`
	Diffs          []diffRequest `json:"diffs" validate:"dive"`
}

type diffRequest struct {
	PropertyName string  `json:"propertyName" validate:"required,max=64"`
	Before       *string `json:"before"`
	After        *string `json:"after"`
}

// Register は変更履歴を登録し、採番された ID を返します。
// ipAddress が省略された場合は呼び出し元のアドレスを記録します。
func (h *ChangeLogHandler) Register(c echo.Context) error {
	var req registerChangeLogRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	if req.IPAddress == "" {
		req.IPAddress = clientIP(c)
	}

	id, err := h.svc.RegisterChangeLog(c.Request().Context(), changelog.RegisterInput{
		Type:           req.Type,
		EmployeeNumber: req.EmployeeNumber,
		Memo:           req.Memo,
		IPAddress:      req.IPAddress,
		Diffs: lo.Map(req.Diffs, func(d diffRequest, _ int) changelog.Diff {
			return changelog.Diff{PropertyName: d.PropertyName, Before: d.Before, After: d.After}
		}),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, id)
}

// List は変更履歴をカーソルページングで返します。
func (h *ChangeLogHandler) List(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	atFrom, err := queryInstant(c, "atFrom")
	if err != nil {
		return err
	}
	atTo, err := queryInstant(c, "atTo")
	if err != nil {
		return err
	}
	var typ *changelog.Type
	if raw := queryString(c, "type"); raw != "" {
		parsed, err := changelog.ParseType(raw)
		if err != nil {
			return err
		}
		typ = &parsed
	}

	result, err := h.svc.SearchChangeLogs(c.Request().Context(), changelog.SearchInput{
		Filter: changelog.SearchFilter{
			EmployeeNumber: queryString(c, "employeeNumber"),
			Memo:           queryString(c, "memo"),
			IPAddress:      queryString(c, "ipAddress"),
			Type:           typ,
			AtFrom:         atFrom,
			AtTo:           atTo,
		},
		Page: page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(result, toChangeLogResponse))
}

// Get は変更履歴のヘッダを返します。
func (h *ChangeLogHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	found, err := h.svc.GetChangeLog(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toChangeLogResponse(found))
}

// Diffs は変更履歴の差分を登録順で返します。
func (h *ChangeLogHandler) Diffs(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	diffs, err := h.svc.GetDiffs(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lo.Map(diffs, func(d changelog.Diff, _ int) diffResponse { return toDiffResponse(d) }))
}
