package rules

import "errors"

// Sentinel kinds for rule evaluation errors.
var (
	ErrRuleFailed = errors.New("rule evaluation failed")
)
