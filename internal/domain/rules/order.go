package rules

import "sort"

// Well-known rule set names, in evaluation priority.
const (
	SetBuild       = "build"
	SetUnitTesting = "unit-testing"
	SetOpenTasks   = "open-tasks"
	SetViolations  = "violations"
	SetPMD         = "pmd"
	SetFindBugs    = "findbugs"
	SetWarnings    = "warnings"
	SetCheckstyle  = "checkstyle"
)

var priority = map[string]int{
	SetBuild:       0,
	SetUnitTesting: 1,
	SetOpenTasks:   2,
	SetViolations:  3,
	SetPMD:         4,
	SetFindBugs:    5,
	SetWarnings:    6,
	SetCheckstyle:  7,
}

// Order sorts sets into the fixed evaluation priority. Sets with unknown
// names keep their relative order after the well-known ones.
func Order(sets []Set) []Set {
	out := make([]Set, len(sets))
	copy(out, sets)
	rank := func(s Set) int {
		if p, ok := priority[s.Name()]; ok {
			return p
		}
		return len(priority)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}
