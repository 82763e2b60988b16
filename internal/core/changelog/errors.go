package changelog

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidID             = apperr.New(apperr.ErrValidation, "changelog: invalid id")
	ErrInvalidType           = apperr.New(apperr.ErrValidation, "changelog: invalid type")
	ErrInvalidEmployeeNumber = apperr.New(apperr.ErrValidation, "changelog: invalid employee number")
	ErrInvalidIPAddress      = apperr.New(apperr.ErrValidation, "changelog: invalid ip address")
	ErrInvalidMemo           = apperr.New(apperr.ErrValidation, "changelog: memo too long")
	ErrInvalidDiff           = apperr.New(apperr.ErrValidation, "changelog: invalid diff")
	ErrInvalidDateRange      = apperr.New(apperr.ErrValidation, "changelog: invalid date range")
	ErrChangeLogNotFound     = apperr.New(apperr.ErrNotFound, "changelog: not found")
)
