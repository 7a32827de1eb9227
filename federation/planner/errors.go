package planner

import (
	"fmt"
	"strings"
)

// PlanError is a named, stable error kind raised while solving the logical
// plan DAG (spec.md §6.3).
type PlanError struct {
	Kind      string
	Missing   []string
	QueryPath []string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: no resolver can plan [%s] at %s", e.Kind, strings.Join(e.Missing, ", "), strings.Join(e.QueryPath, "."))
}

func errCouldNotPlanAnyField(missing []string, path []string) *PlanError {
	return &PlanError{Kind: "CouldNotPlanAnyField", Missing: missing, QueryPath: append([]string{}, path...)}
}
