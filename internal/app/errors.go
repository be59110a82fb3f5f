package service

import "errors"

// Sentinel kinds returned by the service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidBuild   = errors.New("invalid build")
	ErrDuplicate      = errors.New("duplicate build")
	ErrBackpressure   = errors.New("build queue full")
	ErrUnknownGame    = errors.New("unknown game")
	ErrUnknownUser    = errors.New("unknown user")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrNoScoreCard    = errors.New("no score card for build")
	ErrInvalidGames   = errors.New("invalid custom games")
)
