package opgraph

import "github.com/graphfed/supergraph-planner/federation/schema"

// FieldID identifies one field selection instance within a client
// operation. It is distinct from schema.FieldDefID: many FieldIDs (one per
// selection occurrence, including extras the planner introduces) can share
// one schema.FieldDefID.
type FieldID int32

// Operation is the capability set the operation graph builder needs from
// whatever produced the validated client document (spec.md §6.1). SDL
// lexing/parsing and operation validation are assumed upstream; this
// package only consumes the shape below, so alternate front-ends (a
// different AST, a persisted-query cache) can drive the same builder.
type Operation interface {
	// FieldIDs returns every field in the operation, in stable order.
	FieldIDs() []FieldID

	// RootSelectionSet returns the top-level selections of the operation
	// (the fields directly under query/mutation/subscription).
	RootSelectionSet() []FieldID

	// Subselection returns the direct child selections of id.
	Subselection(id FieldID) []FieldID

	// FieldDefinition resolves id to the schema field it selects, or false
	// for a meta-field such as __typename.
	FieldDefinition(id FieldID) (schema.FieldDefID, bool)

	// FieldIsEquivalentTo reports whether the field already bound to id
	// resolves the same schema field and argument values as required,
	// independent of selection order (spec.md §4.4, §4.5 step 4).
	FieldIsEquivalentTo(id FieldID, required schema.FieldDefID) bool

	// CreatePotentialExtraFieldFromRequirement inserts a new field into
	// the operation on behalf of petitioner to satisfy required, and
	// returns its id. The operation owns where the new field lives in its
	// own tree; the planner only decides afterwards whether to keep it.
	CreatePotentialExtraFieldFromRequirement(petitioner FieldID, required schema.FieldDefID) FieldID
}
