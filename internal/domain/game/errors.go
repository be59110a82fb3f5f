package game

import "errors"

// Sentinel kinds for game configuration errors.
var (
	ErrEmptyScope     = errors.New("custom game scope is empty")
	ErrMalformedScope = errors.New("custom game scope is malformed")
	ErrNotFound       = errors.New("game not found")
	ErrReservedID     = errors.New("custom game id is reserved")
	ErrDuplicateID    = errors.New("custom game id is used twice")
)
