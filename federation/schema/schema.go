package schema

import (
	"sort"

	"github.com/graphfed/supergraph-planner/internal/intern"
)

// Schema is the frozen, index-addressable supergraph built by Builder.Build
// (spec.md §3 "Schema graph"). Every accessor is a direct slice or map
// lookup: no accessor on Schema walks the SDL again.
type Schema struct {
	strings   *intern.Strings
	fieldSets *intern.Records[string, FieldSetID, FieldSet]

	subgraphs      []SubgraphRecord
	subgraphByName map[string]SubgraphID

	objects      []ObjectType
	objectByName map[string]ObjectID

	interfaces      []InterfaceType
	interfaceByName map[string]InterfaceID

	unions      []UnionType
	unionByName map[string]UnionID

	enums      []EnumType
	enumByName map[string]EnumID

	scalars      []ScalarType
	scalarByName map[string]ScalarID

	inputObjects      []InputObjectType
	inputObjectByName map[string]InputObjectID

	fields       []FieldRecord
	fieldsByName map[EntityID]map[string]FieldDefID

	inputValues []InputValueRecord
	enumValues  []EnumValueRecord
	resolvers   []ResolverDef
	directives  []DirectiveRecord

	entityResolvers map[EntityID]map[SubgraphID][]ResolverDefID

	byName map[string]TypeDefID

	rootQuery, rootMutation, rootSubscription *ObjectID
}

// String resolves an interned name back to its text.
func (s *Schema) String(id intern.StringID) string { return s.strings.Lookup(id) }

func (s *Schema) Subgraph(id SubgraphID) SubgraphRecord { return s.subgraphs[id] }
func (s *Schema) SubgraphCount() int                    { return len(s.subgraphs) }

func (s *Schema) SubgraphByName(name string) (SubgraphID, bool) {
	id, ok := s.subgraphByName[name]
	return id, ok
}

func (s *Schema) Object(id ObjectID) ObjectType       { return s.objects[id] }
func (s *Schema) Interface(id InterfaceID) InterfaceType { return s.interfaces[id] }
func (s *Schema) Union(id UnionID) UnionType          { return s.unions[id] }
func (s *Schema) Enum(id EnumID) EnumType             { return s.enums[id] }
func (s *Schema) Scalar(id ScalarID) ScalarType       { return s.scalars[id] }
func (s *Schema) InputObject(id InputObjectID) InputObjectType { return s.inputObjects[id] }

func (s *Schema) Field(id FieldDefID) FieldRecord           { return s.fields[id] }
func (s *Schema) InputValue(id InputValueID) InputValueRecord { return s.inputValues[id] }
func (s *Schema) EnumValue(id EnumValueID) EnumValueRecord   { return s.enumValues[id] }
func (s *Schema) Resolver(id ResolverDefID) ResolverDef       { return s.resolvers[id] }
func (s *Schema) Directive(id DirectiveID) DirectiveRecord    { return s.directives[id] }
func (s *Schema) FieldSet(id FieldSetID) FieldSet             { return s.fieldSets.Get(id) }

// TypeByName resolves any type-system name (object, interface, union, enum,
// scalar or input object) to its tagged id.
func (s *Schema) TypeByName(name string) (TypeDefID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

func (s *Schema) ObjectByName(name string) (ObjectID, bool) {
	id, ok := s.objectByName[name]
	return id, ok
}

func (s *Schema) InterfaceByName(name string) (InterfaceID, bool) {
	id, ok := s.interfaceByName[name]
	return id, ok
}

// EntityName returns the type name an EntityID tags, for __typename
// comparisons and _entities representation building.
func (s *Schema) EntityName(e EntityID) string {
	if e.Kind == EntityInterface {
		return s.interfaces[e.Interface].Name
	}
	return s.objects[e.Object].Name
}

func (s *Schema) FieldByName(entity EntityID, name string) (FieldDefID, bool) {
	byName, ok := s.fieldsByName[entity]
	if !ok {
		return 0, false
	}
	id, ok := byName[name]
	return id, ok
}

// RootQuery, RootMutation and RootSubscription report the supergraph's root
// operation types, if the SDL declared them.
func (s *Schema) RootQuery() (ObjectID, bool)        { return derefRoot(s.rootQuery) }
func (s *Schema) RootMutation() (ObjectID, bool)     { return derefRoot(s.rootMutation) }
func (s *Schema) RootSubscription() (ObjectID, bool) { return derefRoot(s.rootSubscription) }

func derefRoot(id *ObjectID) (ObjectID, bool) {
	if id == nil {
		return 0, false
	}
	return *id, true
}

// EntityResolvers returns the resolvers able to reach entity from subgraph,
// in registration order (spec.md §3.1).
func (s *Schema) EntityResolvers(entity EntityID, subgraph SubgraphID) []ResolverDefID {
	return s.entityResolvers[entity][subgraph]
}

// IsFieldResolvableIn reports whether field is in the resolvable set for
// subgraph (field.ExistsIn is sorted ascending, so this is a binary search).
func (s *Schema) IsFieldResolvableIn(field FieldDefID, subgraph SubgraphID) bool {
	existsIn := s.fields[field].ExistsIn
	i := sort.Search(len(existsIn), func(i int) bool { return existsIn[i] >= subgraph })
	return i < len(existsIn) && existsIn[i] == subgraph
}

// ProvidesForSubgraph returns the @provides field set attached to field for
// subgraph, if any.
func (s *Schema) ProvidesForSubgraph(field FieldDefID, subgraph SubgraphID) (FieldSet, bool) {
	return s.lookupFieldSetRecord(s.fields[field].ProvidesRecords, subgraph)
}

// RequiresForSubgraph returns the @requires field set attached to field for
// subgraph, if any.
func (s *Schema) RequiresForSubgraph(field FieldDefID, subgraph SubgraphID) (FieldSet, bool) {
	return s.lookupFieldSetRecord(s.fields[field].RequiresRecords, subgraph)
}

func (s *Schema) lookupFieldSetRecord(records []SubgraphFieldSetRecord, subgraph SubgraphID) (FieldSet, bool) {
	for _, r := range records {
		if r.SubgraphID == subgraph {
			return s.fieldSets.Get(r.FieldSet), true
		}
	}
	return FieldSet{}, false
}

// IsTypeInaccessible reports whether a type definition carries
// @inaccessible itself. Finalization propagates inaccessibility from types
// onto fields and input values, never onto other types.
func (s *Schema) IsTypeInaccessible(id TypeDefID) bool {
	switch id.Kind {
	case TypeDefObject:
		return s.objects[id.Object].Inaccessible
	case TypeDefInterface:
		return s.interfaces[id.Interface].Inaccessible
	case TypeDefUnion:
		return s.unions[id.Union].Inaccessible
	case TypeDefEnum:
		return s.enums[id.Enum].Inaccessible
	case TypeDefScalar:
		return s.scalars[id.Scalar].Inaccessible
	case TypeDefInputObject:
		return s.inputObjects[id.InputObject].Inaccessible
	default:
		return false
	}
}

// TypeDefVisitor receives one callback per named type definition, in
// name-sorted order, for use by consumers (e.g. the SDL emitter) that need
// deterministic output regardless of SDL source order.
type TypeDefVisitor struct {
	Object      func(ObjectID, ObjectType)
	Interface   func(InterfaceID, InterfaceType)
	Union       func(UnionID, UnionType)
	Enum        func(EnumID, EnumType)
	Scalar      func(ScalarID, ScalarType)
	InputObject func(InputObjectID, InputObjectType)
}

// Walk visits every type definition in the schema ordered by name, calling
// whichever visitor field matches its kind. A nil visitor field skips that
// kind.
func (s *Schema) Walk(v TypeDefVisitor) {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		id := s.byName[name]
		switch id.Kind {
		case TypeDefObject:
			if v.Object != nil {
				v.Object(id.Object, s.objects[id.Object])
			}
		case TypeDefInterface:
			if v.Interface != nil {
				v.Interface(id.Interface, s.interfaces[id.Interface])
			}
		case TypeDefUnion:
			if v.Union != nil {
				v.Union(id.Union, s.unions[id.Union])
			}
		case TypeDefEnum:
			if v.Enum != nil {
				v.Enum(id.Enum, s.enums[id.Enum])
			}
		case TypeDefScalar:
			if v.Scalar != nil {
				v.Scalar(id.Scalar, s.scalars[id.Scalar])
			}
		case TypeDefInputObject:
			if v.InputObject != nil {
				v.InputObject(id.InputObject, s.inputObjects[id.InputObject])
			}
		}
	}
}

// FieldLookup adapts the frozen schema to the ParseFieldSet seam, for
// consumers parsing field-set literals after composition has completed
// (e.g. persisted-query validation, outside this module's scope).
func (s *Schema) FieldLookup() FieldLookup {
	return func(parent TypeDefID, name string) (FieldDefID, TypeRef, bool) {
		entity, ok := entityFromTypeDef(parent)
		if !ok {
			return 0, TypeRef{}, false
		}
		id, ok := s.FieldByName(entity, name)
		if !ok {
			return 0, TypeRef{}, false
		}
		return id, s.fields[id].Type, true
	}
}
