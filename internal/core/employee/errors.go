package employee

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidID                   = apperr.New(apperr.ErrValidation, "employee: invalid id")
	ErrInvalidEmployeeNumber       = apperr.New(apperr.ErrValidation, "employee: invalid employee number")
	ErrInvalidName                 = apperr.New(apperr.ErrValidation, "employee: invalid name")
	ErrInvalidEmail                = apperr.New(apperr.ErrValidation, "employee: invalid email")
	ErrInvalidPosition             = apperr.New(apperr.ErrValidation, "employee: invalid position")
	ErrInvalidDepartmentID         = apperr.New(apperr.ErrValidation, "employee: invalid department id")
	ErrInvalidStatus               = apperr.New(apperr.ErrValidation, "employee: invalid status")
	ErrInvalidDateRange            = apperr.New(apperr.ErrValidation, "employee: invalid hire date range")
	ErrEmployeeNotFound            = apperr.New(apperr.ErrNotFound, "employee: not found")
	ErrEmailAlreadyExists          = apperr.New(apperr.ErrConflict, "employee: email already exists")
	ErrEmployeeNumberAlreadyExists = apperr.New(apperr.ErrConflict, "employee: employee number already exists")
	ErrBackupInProgress            = apperr.New(apperr.ErrConflict, "employee: a backup is in progress")
	ErrDepartmentNotFound          = apperr.New(apperr.ErrUnprocessable, "employee: department does not exist")
)
