package rules

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/cigame/internal/domain/model"
)

// SetSpec configures a table-driven rule set.
//
// Requires names the integration that supplies the set's metrics; the set
// is unavailable unless that integration is installed. An empty Requires
// means the data is always present.
type SetSpec struct {
	Name     string             `koanf:"name" json:"name" yaml:"name"`
	Requires string             `koanf:"requires" json:"requires,omitempty" yaml:"requires,omitempty"`
	Results  map[string]float64 `koanf:"results" json:"results,omitempty" yaml:"results,omitempty"`
	Metrics  []MetricSpec       `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// MetricSpec awards points per unit change of a metric since the previous build.
type MetricSpec struct {
	Metric         string  `koanf:"metric" json:"metric" yaml:"metric"`
	IncreasePoints float64 `koanf:"increase_points" json:"increase_points" yaml:"increase_points"`
	DecreasePoints float64 `koanf:"decrease_points" json:"decrease_points" yaml:"decrease_points"`
}

// ResultRule awards points according to the build result.
type ResultRule struct {
	Points map[model.Result]float64
}

func (r ResultRule) Name() string { return "build-result" }

func (r ResultRule) Evaluate(_ context.Context, b *model.Build) (Result, bool, error) {
	points, ok := r.Points[b.Result]
	if !ok || points == 0 {
		return Result{}, false, nil
	}
	return Result{Points: points, Description: fmt.Sprintf("Build result was %s", b.Result)}, true, nil
}

// MetricDeltaRule compares a metric with the previous build. An increase of
// n units awards n*IncreasePoints, a decrease awards n*DecreasePoints. The
// rule does not apply when either build lacks the metric.
type MetricDeltaRule struct {
	Spec MetricSpec
}

func (r MetricDeltaRule) Name() string { return r.Spec.Metric }

func (r MetricDeltaRule) Evaluate(_ context.Context, b *model.Build) (Result, bool, error) {
	if b.Previous == nil {
		return Result{}, false, nil
	}
	current, ok := b.Metric(r.Spec.Metric)
	if !ok {
		return Result{}, false, nil
	}
	previous, ok := b.Previous.Metric(r.Spec.Metric)
	if !ok {
		return Result{}, false, nil
	}
	if math.IsNaN(current) || math.IsNaN(previous) {
		return Result{}, false, fmt.Errorf("metric %s is NaN", r.Spec.Metric)
	}

	diff := current - previous
	var points float64
	var verb string
	switch {
	case diff > 0:
		points, verb = diff*r.Spec.IncreasePoints, "increased"
	case diff < 0:
		points, verb = -diff*r.Spec.DecreasePoints, "decreased"
	}
	if points == 0 {
		return Result{}, false, nil
	}
	return Result{
		Points:      points,
		Description: fmt.Sprintf("%s %s by %g", r.Spec.Metric, verb, math.Abs(diff)),
	}, true, nil
}

// FromSpecs builds rule sets from configuration, ordered by Order. A set
// requiring an integration absent from installed is unavailable.
func FromSpecs(specs []SetSpec, installed []string) []Set {
	have := make(map[string]struct{}, len(installed))
	for _, name := range installed {
		have[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}

	sets := make([]Set, 0, len(specs))
	for _, spec := range specs {
		var rs []Rule
		if len(spec.Results) > 0 {
			points := make(map[model.Result]float64, len(spec.Results))
			for result, p := range spec.Results {
				points[model.Result(strings.ToUpper(result))] = p
			}
			rs = append(rs, ResultRule{Points: points})
		}
		for _, m := range spec.Metrics {
			rs = append(rs, MetricDeltaRule{Spec: m})
		}

		requires := strings.ToLower(strings.TrimSpace(spec.Requires))
		var available func() bool
		if requires != "" {
			_, ok := have[requires]
			available = func() bool { return ok }
		}
		sets = append(sets, NewSet(spec.Name, available, rs...))
	}
	return Order(sets)
}
