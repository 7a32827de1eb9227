package schema

import "fmt"

// Location is a span into the source SDL, attached to BuildError so
// diagnostics can point back at the offending directive or definition.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// ErrorKind tags the stable, human-readable error kinds composition can
// raise (spec.md §6.3).
type ErrorKind string

const (
	ErrSchemaValidation    ErrorKind = "GraphQLSchemaValidationError"
	ErrInvalidFieldSet     ErrorKind = "InvalidFieldSet"
	ErrSubgraphNotFound    ErrorKind = "SubgraphNotFound"
	ErrLookupNoMatchingKey ErrorKind = "LookupNoMatchingKey"
)

// BuildError is a composition-time failure. Composition is transactional
// (spec.md §7): Builder.Build runs both passes to the end, collecting every
// error it finds (an unknown subgraph name included), and returns them
// together rather than aborting on the first one.
type BuildError struct {
	Kind     ErrorKind
	Message  string
	Location Location
	Inner    error
}

func (e *BuildError) Error() string {
	if loc := e.Location.String(); loc != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error { return e.Inner }

// BuildErrors is a non-empty collection of BuildError surfaced together
// when composition fails.
type BuildErrors []*BuildError

func (es BuildErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	msg := fmt.Sprintf("%d schema build errors:", len(es))
	for _, e := range es {
		msg += "\n  - " + e.Error()
	}
	return msg
}

func newFieldSetError(loc Location, field, directive string, inner error) *BuildError {
	return &BuildError{
		Kind:     ErrInvalidFieldSet,
		Message:  fmt.Sprintf("%s on %s: %v", directive, field, inner),
		Location: loc,
		Inner:    inner,
	}
}

func newSubgraphNotFoundError(loc Location, name string) *BuildError {
	return &BuildError{
		Kind:     ErrSubgraphNotFound,
		Message:  fmt.Sprintf("unknown subgraph %q", name),
		Location: loc,
	}
}

// newLookupNoMatchingKeyError reports a `@lookup` directive whose argument
// shape does not structurally match any key declared on its entity
// (spec.md §6.3 "a @lookup directive whose parent resolver has no key that
// matches the lookup's argument shape").
func newLookupNoMatchingKeyError(loc Location, site string) *BuildError {
	return &BuildError{
		Kind:     ErrLookupNoMatchingKey,
		Message:  fmt.Sprintf("%s: no declared key matches the @lookup argument shape", site),
		Location: loc,
	}
}

func newValidationError(loc Location, format string, args ...any) *BuildError {
	return &BuildError{
		Kind:     ErrSchemaValidation,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}
