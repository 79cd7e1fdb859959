package model

import "github.com/cockroachdb/errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrJobFinished     = errors.New("job already finished")
	ErrQuotaExceeded   = errors.New("daily job limit reached")
	ErrProfileNotFound = errors.New("profile not found")
	ErrStageFailed     = errors.New("stage failed")
	ErrNotConfigured   = errors.New("not configured")
)
