// Package rules evaluates a completed build against pluggable rules and
// produces the score card for that build.
package rules

import (
	"context"

	"github.com/okian/cigame/internal/domain/model"
)

// Result is the point delta a rule awards for one build.
type Result struct {
	Points      float64 `json:"points"`
	Description string  `json:"description"`
}

// Rule inspects one facet of a build. ok is false when the rule does not
// apply to the build.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, b *model.Build) (res Result, ok bool, err error)
}

// Set groups related rules. A set whose supporting data source is missing
// reports itself unavailable and is skipped as a whole.
type Set interface {
	Name() string
	Rules() []Rule
	Available() bool
}

// Func adapts a function to the Rule interface.
type Func struct {
	RuleName string
	Fn       func(ctx context.Context, b *model.Build) (Result, bool, error)
}

func (f Func) Name() string { return f.RuleName }

func (f Func) Evaluate(ctx context.Context, b *model.Build) (Result, bool, error) {
	return f.Fn(ctx, b)
}

// Static always awards the same result. Mostly useful in tests.
func Static(name string, points float64, description string) Rule {
	return Func{RuleName: name, Fn: func(context.Context, *model.Build) (Result, bool, error) {
		return Result{Points: points, Description: description}, true, nil
	}}
}

type set struct {
	name      string
	rules     []Rule
	available func() bool
}

// NewSet creates a rule set. A nil available func means always available.
func NewSet(name string, available func() bool, rules ...Rule) Set {
	return &set{name: name, rules: rules, available: available}
}

func (s *set) Name() string { return s.name }

func (s *set) Rules() []Rule { return s.rules }

func (s *set) Available() bool {
	return s.available == nil || s.available()
}
