package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/department"
	"github.com/ogurasousui/hrbank-api/internal/platform/optional"
)

// DepartmentHandler は /api/departments の HTTP 実装です。
type DepartmentHandler struct {
	svc department.UseCase
}

// NewDepartmentHandler は DepartmentHandler を生成します。
func NewDepartmentHandler(svc department.UseCase) *DepartmentHandler {
	return &DepartmentHandler{svc: svc}
}

type createDepartmentRequest struct {
	Name            string     `json:"name" validate:"required,max=100"`
	Description     string     `json:"description" validate:"required,max=500"`
	EstablishedDate *civilDate `json:"establishedDate" validate:"required"`
}

type updateDepartmentRequest struct {
	Name            optional.Value[string]    `json:"name"`
	Description     optional.Value[string]    `json:"description"`
	EstablishedDate optional.Value[civilDate] `json:"establishedDate"`
}

// Create は部署を作成します。
func (h *DepartmentHandler) Create(c echo.Context) error {
	var req createDepartmentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	created, err := h.svc.CreateDepartment(c.Request().Context(), department.CreateDepartmentInput{
		Name:            req.Name,
		Description:     req.Description,
		EstablishedDate: req.EstablishedDate.ptr(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toDepartmentResponse(created))
}

// Update は部署を部分更新します。
func (h *DepartmentHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateDepartmentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	updated, err := h.svc.UpdateDepartment(c.Request().Context(), department.UpdateDepartmentInput{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		EstablishedDate: civilDateValue(req.EstablishedDate),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDepartmentResponse(updated))
}

// Delete は部署を削除します。所属社員がいる場合は CONFLICT です。
func (h *DepartmentHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDepartment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get は部署を 1 件取得します。
func (h *DepartmentHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	found, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDepartmentResponse(found))
}

// List は部署をカーソルページングで返します。
func (h *DepartmentHandler) List(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := h.svc.SearchDepartments(c.Request().Context(), department.SearchDepartmentsInput{
		Filter: department.SearchFilter{NameOrDescription: queryString(c, "nameOrDescription")},
		Page:   page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(result, toDepartmentResponse))
}
