package blob

import "github.com/ogurasousui/hrbank-api/internal/platform/apperr"

var (
	ErrInvalidID      = apperr.New(apperr.ErrValidation, "blob: invalid id")
	ErrEmptyUpload    = apperr.New(apperr.ErrValidation, "blob: upload is empty")
	ErrInvalidKey     = apperr.New(apperr.ErrValidation, "blob: invalid storage key")
	ErrBlobNotFound   = apperr.New(apperr.ErrNotFound, "blob: not found")
	ErrObjectNotFound = apperr.New(apperr.ErrUpstream, "blob: stored object is missing")
	ErrStoreFailure   = apperr.New(apperr.ErrUpstream, "blob: store failure")
)
