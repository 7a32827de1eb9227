package schema

// Dense, phantom-typed ids into the arenas of a Schema. None of these are
// ever freed: once assigned during composition they remain valid for the
// lifetime of the process (spec.md §3.1).
type (
	SubgraphID    int32
	ObjectID      int32
	InterfaceID   int32
	UnionID       int32
	EnumID        int32
	ScalarID      int32
	InputObjectID int32
	FieldDefID    int32
	InputValueID  int32
	EnumValueID   int32
	ResolverDefID int32
	DirectiveID   int32
	FieldSetID    int32
)

// TypeDefKind tags which arena a TypeDefID indexes into.
type TypeDefKind uint8

const (
	TypeDefObject TypeDefKind = iota
	TypeDefInterface
	TypeDefUnion
	TypeDefEnum
	TypeDefScalar
	TypeDefInputObject
)

// TypeDefID is a tagged union over the six type-definition categories.
type TypeDefID struct {
	Kind        TypeDefKind
	Object      ObjectID
	Interface   InterfaceID
	Union       UnionID
	Enum        EnumID
	Scalar      ScalarID
	InputObject InputObjectID
}

// EntityKind tags which arena an EntityID indexes into. Only object and
// interface definitions can participate in federation keys (spec.md §3.1).
type EntityKind uint8

const (
	EntityObject EntityKind = iota
	EntityInterface
)

// EntityID is a tagged union over object/interface ids.
type EntityID struct {
	Kind      EntityKind
	Object    ObjectID
	Interface InterfaceID
}

func entityFromObject(id ObjectID) EntityID    { return EntityID{Kind: EntityObject, Object: id} }
func entityFromInterface(id InterfaceID) EntityID {
	return EntityID{Kind: EntityInterface, Interface: id}
}

// EntityFromTypeDef reports whether t names an object or interface and, if
// so, returns its EntityID. Exported for consumers outside this package
// (the operation builder, the SDL emitter) that need to cross from a field's
// output TypeRef into the entity namespace without re-deriving the tagged
// union by hand.
func EntityFromTypeDef(t TypeDefID) (EntityID, bool) { return entityFromTypeDef(t) }

// FieldRange is a contiguous run into the Schema.Fields/InputValues/EnumValues
// arenas, used by objects/interfaces (field ranges), input objects (input
// value ranges) and enums (enum value ranges).
type FieldRange struct {
	Start FieldDefID
	Count int32
}

func (r FieldRange) ids() []FieldDefID {
	ids := make([]FieldDefID, r.Count)
	for i := range ids {
		ids[i] = r.Start + FieldDefID(i)
	}
	return ids
}

// InputValueRange is the InputValueID analog of FieldRange, used for field
// argument lists and input-object field lists.
type InputValueRange struct {
	Start InputValueID
	Count int32
}

func (r InputValueRange) ids() []InputValueID {
	ids := make([]InputValueID, r.Count)
	for i := range ids {
		ids[i] = r.Start + InputValueID(i)
	}
	return ids
}

// EnumValueRange is the EnumValueID analog of FieldRange.
type EnumValueRange struct {
	Start EnumValueID
	Count int32
}

func (r EnumValueRange) ids() []EnumValueID {
	ids := make([]EnumValueID, r.Count)
	for i := range ids {
		ids[i] = r.Start + EnumValueID(i)
	}
	return ids
}
