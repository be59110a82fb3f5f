package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound = errors.New("not found")
	ErrSave     = errors.New("save failed")
	ErrLoad     = errors.New("load failed")
	ErrDriver   = errors.New("unknown store driver")
)
