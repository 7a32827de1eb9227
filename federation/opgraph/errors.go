package opgraph

import "fmt"

// BuildError is a named, stable error kind raised while building the
// operation graph (spec.md §6.3).
type BuildError struct {
	Kind    string
	Message string
}

func (e *BuildError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func errCouldNotPlanField(name string) *BuildError {
	return &BuildError{Kind: "CouldNotPlanField", Message: fmt.Sprintf("field %q has no providable path", name)}
}

func errCouldNotBuildOperationGraph(reason string) *BuildError {
	return &BuildError{Kind: "CouldNotBuildOperationGraph", Message: reason}
}
