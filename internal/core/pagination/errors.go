package pagination

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidCursor        = apperr.New(apperr.ErrValidation, "pagination: invalid cursor")
	ErrInvalidSort          = apperr.New(apperr.ErrValidation, "pagination: invalid sort field")
	ErrInvalidSortDirection = apperr.New(apperr.ErrValidation, "pagination: invalid sort direction")
	ErrInvalidPageSize      = apperr.New(apperr.ErrValidation, "pagination: invalid page size")
	ErrInvalidIDAfter       = apperr.New(apperr.ErrValidation, "pagination: invalid idAfter")
)
