package backup

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidID        = apperr.New(apperr.ErrValidation, "backup: invalid id")
	ErrInvalidStatus    = apperr.New(apperr.ErrValidation, "backup: invalid status")
	ErrInvalidWorker    = apperr.New(apperr.ErrValidation, "backup: invalid worker")
	ErrInvalidDateRange = apperr.New(apperr.ErrValidation, "backup: invalid date range")
	ErrBackupNotFound   = apperr.New(apperr.ErrNotFound, "backup: not found")
	// ErrNotInProgress は終端状態の行を遷移させようとしたことを示します。
	ErrNotInProgress = apperr.New(apperr.ErrConflict, "backup: not in progress")
)
