package schema

import "github.com/graphfed/supergraph-planner/internal/intern"

// TypeRef is a field or argument's type, flattened from the AST's
// NamedType/ListType/NonNullType chain into a wrapping list plus a named
// leaf (spec.md §3.1 "ty_record").
type TypeRef struct {
	Named    TypeDefID
	NamedStr string // name of the leaf type, for diagnostics before resolution completes
	ListOf   *TypeRef
	NonNull  bool
}

// IsComposite reports whether the type's leaf is an object, interface or
// union (the kinds that can carry a selection set).
func (t TypeRef) IsComposite() bool {
	leaf := &t
	for leaf.ListOf != nil {
		leaf = leaf.ListOf
	}
	switch leaf.Named.Kind {
	case TypeDefObject, TypeDefInterface, TypeDefUnion:
		return true
	default:
		return false
	}
}

// JoinImplementRecord is one `@join__implements(graph, interface)` entry on
// an object, sorted lexicographically by (SubgraphID, InterfaceID).
type JoinImplementRecord struct {
	SubgraphID  SubgraphID
	InterfaceID InterfaceID
}

// JoinMemberRecord is one `@join__unionMember(graph, member)` entry,
// sorted lexicographically by (SubgraphID, ObjectID).
type JoinMemberRecord struct {
	SubgraphID SubgraphID
	ObjectID   ObjectID
}

// SubgraphTypeRecord records that a field's declared type differs in a
// given subgraph (`@join__field(type:)`).
type SubgraphTypeRecord struct {
	SubgraphID SubgraphID
	Type       TypeRef
}

// SubgraphFieldSetRecord pairs a subgraph with a field set, used for
// per-subgraph `@provides`/`@requires`.
type SubgraphFieldSetRecord struct {
	SubgraphID SubgraphID
	FieldSet   FieldSetID
}

// SubgraphRecord describes one subgraph participating in the supergraph.
type SubgraphRecord struct {
	NameID            intern.StringID
	Name              string // denormalized for convenience; NameID is authoritative
	IsGraphQLEndpoint bool
	URL               string
}

// DirectiveRecord is a directive kept after ingestion because a resolver
// refers to it: a @lookup directive or a field-resolver extension directive.
// Join/federation metadata directives are consumed by the builder, and
// @deprecated, @specifiedBy and @oneOf are stored in dedicated fields of
// their definitions rather than here.
type DirectiveRecord struct {
	NameID    intern.StringID
	Name      string
	Arguments map[string]string // best-effort literal rendering of each argument, keyed by name
}

// ObjectType is an object type definition (spec.md §3.1).
type ObjectType struct {
	NameID            intern.StringID
	Name              string
	Description       string
	ExistsIn          []SubgraphID // sorted, deduped; empty pre-expansion means "universal"
	Directives        []DirectiveID
	Inaccessible      bool
	InterfaceIDs      []InterfaceID
	Fields            FieldRange
	JoinImplements    []JoinImplementRecord // sorted
}

// InterfaceType is an interface type definition.
type InterfaceType struct {
	NameID                intern.StringID
	Name                  string
	Description           string
	ExistsIn              []SubgraphID
	Directives            []DirectiveID
	Inaccessible          bool
	PossibleTypeIDs       []ObjectID
	InterfaceIDs          []InterfaceID // interfaces this interface itself implements
	IsInterfaceObjectIn   []SubgraphID
	NotFullyImplementedIn []SubgraphID // sorted by subgraph id
	Fields                FieldRange
}

// UnionType is a union type definition.
type UnionType struct {
	NameID                intern.StringID
	Name                  string
	Description           string
	ExistsIn              []SubgraphID
	Directives            []DirectiveID
	Inaccessible          bool
	JoinMembers           []JoinMemberRecord // sorted
	NotFullyImplementedIn []SubgraphID
}

// EnumType is an enum type definition.
type EnumType struct {
	NameID       intern.StringID
	Name         string
	Description  string
	ExistsIn     []SubgraphID
	Directives   []DirectiveID
	Inaccessible bool
	Values       EnumValueRange
}

// ScalarType is a scalar type definition.
type ScalarType struct {
	NameID       intern.StringID
	Name         string
	Description  string
	ExistsIn     []SubgraphID
	Directives   []DirectiveID
	Inaccessible bool
	SpecifiedBy  string
}

// InputObjectType is an input object type definition.
type InputObjectType struct {
	NameID       intern.StringID
	Name         string
	Description  string
	ExistsIn     []SubgraphID
	Directives   []DirectiveID
	Inaccessible bool
	IsOneOf      bool
	InputFields  InputValueRange
}

// FieldRecord is an output field on an object or interface.
type FieldRecord struct {
	NameID       intern.StringID
	Name         string
	Description  string
	ParentEntity EntityID
	Type         TypeRef
	Arguments    InputValueRange

	ExistsIn            []SubgraphID // resolvable-in set, derived per spec.md §4.3
	SubgraphTypeRecords []SubgraphTypeRecord
	ProvidesRecords     []SubgraphFieldSetRecord
	RequiresRecords     []SubgraphFieldSetRecord
	ResolverIDs         []ResolverDefID

	// AuthorizedFields/AuthorizedNodeFields hold the two possible field
	// sets from `@authorized(fields:, node:)`: fields is scoped to the
	// parent entity, node to the field's own output composite type.
	AuthorizedFields     *FieldSetID
	AuthorizedNodeFields *FieldSetID

	HasJoinField bool
	IsShareable  bool
	IsExternal   bool
	Inaccessible bool
	Deprecated   *string

	IsListSized  bool // @listSize present
	SizedFields  []string
}

// InputValueRecord is an argument or input-object field.
type InputValueRecord struct {
	NameID       intern.StringID
	Name         string
	Description  string
	Type         TypeRef
	HasDefault   bool
	DefaultValue string // literal rendering of the default value expression
	Inaccessible bool
}

// EnumValueRecord is one value of an enum type.
type EnumValueRecord struct {
	NameID       intern.StringID
	Name         string
	Description  string
	Inaccessible bool
	Deprecated   *string
}
