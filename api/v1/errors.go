package v1

import "errors"

var (
	ErrDownloadCtx = errors.New("download body missing in context")
	ErrContentType = errors.New("Content-Type must be application/json")
	ErrBadLimit    = errors.New("limit must be a positive integer")
)
