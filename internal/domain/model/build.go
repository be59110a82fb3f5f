// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome reported by the build system.
type Result string

const (
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultAborted  Result = "ABORTED"
	ResultNotBuilt Result = "NOT_BUILT"
)

// Valid reports whether r is one of the known results.
func (r Result) Valid() bool {
	switch r {
	case ResultSuccess, ResultUnstable, ResultFailure, ResultAborted, ResultNotBuilt:
		return true
	default:
		return false
	}
}

// Change is one change-set entry of a build.
type Change struct {
	Author  string `json:"author"`
	Message string `json:"message,omitempty"`
}

// Build is a completed build as handed over by the build system.
// Metrics carry the facets rules inspect, e.g. "tests.failed" or
// "warnings.checkstyle".
type Build struct {
	Project  string             `json:"project"`
	Number   int                `json:"number"`
	Result   Result             `json:"result"`
	Changes  []Change           `json:"changes,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Previous *Build             `json:"previous,omitempty"`
	TS       time.Time          `json:"ts"`
}

// Key identifies the build across the system, e.g. "core#42".
func (b *Build) Key() string {
	return BuildKey(b.Project, b.Number)
}

// Metric returns a metric value and whether the build reported it.
func (b *Build) Metric(name string) (float64, bool) {
	v, ok := b.Metrics[name]
	return v, ok
}

// Validate checks the fields required to score a build.
func (b *Build) Validate() error {
	switch {
	case strings.TrimSpace(b.Project) == "":
		return errors.New("missing project")
	case b.Number < 1:
		return errors.New("build number must be positive")
	case !b.Result.Valid():
		return errors.New("unknown build result " + strconv.Quote(string(b.Result)))
	}
	if b.Previous != nil && b.Previous.Number >= b.Number {
		return errors.New("previous build number must precede the build")
	}
	return nil
}

// BuildKey formats the key of build number of project.
func BuildKey(project string, number int) string {
	return project + "#" + strconv.Itoa(number)
}
