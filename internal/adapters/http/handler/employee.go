package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/changelog"
	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
	"github.com/ogurasousui/hrbank-api/internal/platform/optional"
)

const (
	employeePart = "employee"
	profilePart  = "profile"
)

var errEmployeePartMissing = apperr.New(apperr.ErrValidation, "employee part is required")

// EmployeeHandler は /api/employees の HTTP 実装です。
type EmployeeHandler struct {
	svc employee.UseCase
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

type createEmployeeRequest struct {
	EmployeeNumber string     `json:"employeeNumber" validate:"omitempty,max=50"`
	Name           string     `json:"name" validate:"required,max=100"`
	Email          string     `json:"email" validate:"required,max=255"`
	Position       *string    `json:"position" validate:"omitempty,max=100"`
	DepartmentID   int64      `json:"departmentId" validate:"required,gt=0"`
	HireDate       *civilDate `json:"hireDate"`
	Status         *string    `json:"status"`
	Memo           string     `json:"memo" validate:"max=500"`
}

type updateEmployeeRequest struct {
	EmployeeNumber optional.Value[string]    `json:"employeeNumber"`
	Name           optional.Value[string]    `json:"name"`
	Email          optional.Value[string]    `json:"email"`
	Position       optional.Value[string]    `json:"position"`
	DepartmentID   optional.Value[int64]     `json:"departmentId"`
	HireDate       optional.Value[civilDate] `json:"hireDate"`
	Status         optional.Value[string]    `json:"status"`
	Memo           string                    `json:"memo" validate:"max=500"`
}

// Create は社員を作成します。
func (h *EmployeeHandler) Create(c echo.Context) error {
	var req createEmployeeRequest
	profile, closeProfile, err := readEmployeeRequest(c, &req)
	if err != nil {
		return err
	}
	defer closeProfile()

	if err := validateRequest(req); err != nil {
		return err
	}

	var status *employee.Status
	if req.Status != nil {
		parsed, err := employee.ParseStatus(*req.Status)
		if err != nil {
			return err
		}
		status = &parsed
	}

	created, err := h.svc.CreateEmployee(c.Request().Context(), employee.CreateEmployeeInput{
		EmployeeNumber: req.EmployeeNumber,
		Name:           req.Name,
		Email:          req.Email,
		Position:       req.Position,
		DepartmentID:   req.DepartmentID,
		HireDate:       req.HireDate.ptr(),
		Status:         status,
		Profile:        profile,
		Source:         changelog.Source{Memo: req.Memo, IPAddress: clientIP(c)},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEmployeeResponse(created))
}

// Update は社員を部分更新します。
func (h *EmployeeHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateEmployeeRequest
	profile, closeProfile, err := readEmployeeRequest(c, &req)
	if err != nil {
		return err
	}
	defer closeProfile()

	if err := validateRequest(req); err != nil {
		return err
	}

	status, err := mapValue(req.Status, employee.ParseStatus)
	if err != nil {
		return err
	}

	updated, err := h.svc.UpdateEmployee(c.Request().Context(), employee.UpdateEmployeeInput{
		ID:             id,
		EmployeeNumber: req.EmployeeNumber,
		Name:           req.Name,
		Email:          req.Email,
		Position:       req.Position,
		DepartmentID:   req.DepartmentID,
		HireDate:       civilDateValue(req.HireDate),
		Status:         status,
		Profile:        profile,
		Source:         changelog.Source{Memo: req.Memo, IPAddress: clientIP(c)},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEmployeeResponse(updated))
}

// Delete は社員を削除します。
func (h *EmployeeHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEmployee(c.Request().Context(), employee.DeleteEmployeeInput{
		ID:     id,
		Source: changelog.Source{IPAddress: clientIP(c)},
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get は社員を 1 件取得します。
func (h *EmployeeHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	found, err := h.svc.GetEmployee(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEmployeeResponse(found))
}

// List は社員をカーソルページングで返します。
func (h *EmployeeHandler) List(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	from, err := queryDate(c, "hireDateFrom")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "hireDateTo")
	if err != nil {
		return err
	}
	status, err := queryStatus(c)
	if err != nil {
		return err
	}

	result, err := h.svc.SearchEmployees(c.Request().Context(), employee.SearchEmployeesInput{
		Filter: employee.SearchFilter{
			NameOrEmail:    queryString(c, "nameOrEmail"),
			DepartmentName: queryString(c, "departmentName"),
			Position:       queryString(c, "position"),
			EmployeeNumber: queryString(c, "employeeNumber"),
			HireDateFrom:   from,
			HireDateTo:     to,
			Status:         status,
		},
		Page: page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(result, toEmployeeResponse))
}

// Count は条件に一致する社員数を返します。
func (h *EmployeeHandler) Count(c echo.Context) error {
	status, err := queryStatus(c)
	if err != nil {
		return err
	}
	from, err := queryDate(c, "fromDate")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "toDate")
	if err != nil {
		return err
	}

	n, err := h.svc.CountEmployees(c.Request().Context(), employee.CountFilter{Status: status, FromDate: from, ToDate: to})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func queryStatus(c echo.Context) (*employee.Status, error) {
	raw := queryString(c, "status")
	if raw == "" {
		return nil, nil
	}
	s, err := employee.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// readEmployeeRequest は employee パートの JSON を dst に読み込み、profile パートがあれば返します。
// multipart 以外のリクエストは本文全体を employee パートとして扱います。
func readEmployeeRequest(c echo.Context, dst any) (*blob.Upload, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return nil, noop, err
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			return nil, noop, errEmployeePartMissing
		}
		return nil, noop, decodeEmployeePart(raw, dst)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, invalidParam("multipart", err)
	}

	raw, err := employeePartBytes(form)
	if err != nil {
		return nil, noop, err
	}
	if err := decodeEmployeePart(raw, dst); err != nil {
		return nil, noop, err
	}

	files := form.File[profilePart]
	if len(files) == 0 {
		return nil, noop, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, noop, invalidParam(profilePart, err)
	}
	upload := &blob.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
	}
	return upload, func() { _ = f.Close() }, nil
}

func employeePartBytes(form *multipart.Form) ([]byte, error) {
	if values := form.Value[employeePart]; len(values) > 0 {
		return []byte(values[0]), nil
	}
	files := form.File[employeePart]
	if len(files) == 0 {
		return nil, errEmployeePartMissing
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, invalidParam(employeePart, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodeEmployeePart(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidParam(employeePart, errors.Wrap(err, "malformed json"))
	}
	return nil
}

// mapValue は指定状態を保ったまま Value の中身を変換します。
func mapValue[T, U any](v optional.Value[T], fn func(T) (U, error)) (optional.Value[U], error) {
	switch {
	case !v.Set:
		return optional.Value[U]{}, nil
	case v.Null:
		return optional.Null[U](), nil
	}
	u, err := fn(v.Val)
	if err != nil {
		return optional.Value[U]{}, err
	}
	return optional.Of(u), nil
}
