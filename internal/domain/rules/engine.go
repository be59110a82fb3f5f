package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/metrics"
)

// Entry is one rule result on a score card.
type Entry struct {
	Set    string `json:"set"`
	Rule   string `json:"rule"`
	Result Result `json:"result"`
}

// Report is the score card for one build. It is built once per evaluation
// and never modified afterwards.
type Report struct {
	Build   string  `json:"build"`
	Entries []Entry `json:"entries"`
	Total   float64 `json:"total"`
}

// Engine holds the rule book: the ordered rule sets evaluated per build.
// It is safe for concurrent use once constructed.
type Engine struct {
	sets []Set
}

// NewEngine creates an engine evaluating sets in the given order.
func NewEngine(sets ...Set) *Engine {
	return &Engine{sets: sets}
}

// Sets returns the registered rule sets in evaluation order.
func (e *Engine) Sets() []Set {
	out := make([]Set, len(e.sets))
	copy(out, e.sets)
	return out
}

// Evaluate runs every rule of every available set against b. Any rule
// failure aborts the evaluation and no report is returned, so callers
// never apply a partial score.
func (e *Engine) Evaluate(ctx context.Context, b *model.Build) (Report, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRuleEvaluationLatency(float64(time.Since(start).Milliseconds()))
	}()

	report := Report{Build: b.Key(), Entries: []Entry{}}
	for _, s := range e.sets {
		if !s.Available() {
			continue
		}
		for _, r := range s.Rules() {
			res, ok, err := evaluate(ctx, r, b)
			if err != nil {
				metrics.RecordRuleFailure(s.Name())
				return Report{}, fmt.Errorf("%w: %s/%s on %s: %w", ErrRuleFailed, s.Name(), r.Name(), b.Key(), err)
			}
			if !ok {
				continue
			}
			report.Entries = append(report.Entries, Entry{Set: s.Name(), Rule: r.Name(), Result: res})
			report.Total += res.Points
		}
	}
	return report, nil
}

// evaluate calls the rule, turning a panic into an error.
func evaluate(ctx context.Context, r Rule, b *model.Build) (res Result, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Evaluate(ctx, b)
}
