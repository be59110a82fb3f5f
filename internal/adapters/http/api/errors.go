package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrLimitExceeded   = errors.New("limit exceeded")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrAdminDisabled   = errors.New("administration disabled")
	ErrSettingsUnsaved = errors.New("settings applied but not saved")
)
