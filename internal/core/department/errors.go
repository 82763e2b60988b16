package department

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidID              = apperr.New(apperr.ErrValidation, "department: invalid id")
	ErrInvalidName            = apperr.New(apperr.ErrValidation, "department: invalid name")
	ErrInvalidDescription     = apperr.New(apperr.ErrValidation, "department: invalid description")
	ErrInvalidEstablishedDate = apperr.New(apperr.ErrValidation, "department: invalid established date")
	ErrDepartmentNotFound     = apperr.New(apperr.ErrNotFound, "department: not found")
	ErrNameAlreadyExists      = apperr.New(apperr.ErrConflict, "department: name already exists")
	ErrDepartmentInUse        = apperr.New(apperr.ErrConflict, "department: employees still belong to it")
)
