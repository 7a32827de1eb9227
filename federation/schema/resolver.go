package schema

// ResolverKind tags the variant of a ResolverDef.
type ResolverKind uint8

const (
	// ResolverGraphqlRootField is a plain root-level fetch on a subgraph
	// (query/mutation/subscription field reachable by normal traversal).
	ResolverGraphqlRootField ResolverKind = iota
	// ResolverGraphqlFederationEntity is an `_entities` fetch keyed by a
	// specific @key field set.
	ResolverGraphqlFederationEntity
	// ResolverFieldExtension is a custom field-level resolver contributed
	// by an extension directive.
	ResolverFieldExtension
	// ResolverSelectionSetExtension resolves an entire selection set via
	// an extension (e.g. a `@lookup` batch resolver).
	ResolverSelectionSetExtension
	// ResolverIntrospection serves `__schema`/`__type`.
	ResolverIntrospection
)

// ResolverDef is a tagged union of the runtime handles capable of
// originating a field (spec.md §3.1).
type ResolverDef struct {
	Kind ResolverKind

	// EndpointID is set for GraphqlRootField, GraphqlFederationEntity and
	// SelectionSetExtension (@lookup).
	EndpointID SubgraphID

	// KeyFieldsRecord is set for GraphqlFederationEntity (the @key field set
	// this resolver was registered under) and for SelectionSetExtension
	// (@lookup: the key its argument shape matched).
	KeyFieldsRecord FieldSetID
	HasKeyFields    bool

	// EntityID is the entity this resolver can reach, set for
	// GraphqlFederationEntity and ResolverSelectionSetExtension (@lookup).
	EntityID EntityID

	// DirectiveID identifies the extension directive for FieldExtension
	// and SelectionSetExtension resolvers.
	DirectiveID DirectiveID
}

// RequiredFieldSet returns the field set a resolver itself needs satisfied
// before it can run (spec.md §4.5 step 3, "resolver_definition.required_field_set()").
// Federation-entity resolvers carry their key fields; a `@lookup` selection-
// set-extension resolver (schema/build.go's ingestLookup) carries the key it
// matched its batch argument shape against, for the same reason.
func (r ResolverDef) RequiredFieldSet() (FieldSetID, bool) {
	switch r.Kind {
	case ResolverGraphqlFederationEntity, ResolverSelectionSetExtension:
		if r.HasKeyFields {
			return r.KeyFieldsRecord, true
		}
	}
	return 0, false
}
