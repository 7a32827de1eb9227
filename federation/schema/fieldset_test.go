package schema

import "testing"

func fixtureLookup() FieldLookup {
	// Product { id: ID!, sku: String!, dimensions: Dimensions }
	// Dimensions { size: String! }
	fields := map[FieldDefID]struct {
		name   string
		parent TypeDefID
		typ    TypeRef
	}{
		0: {"id", TypeDefID{Kind: TypeDefObject, Object: 0}, TypeRef{Named: TypeDefID{Kind: TypeDefScalar}, NamedStr: "ID"}},
		1: {"sku", TypeDefID{Kind: TypeDefObject, Object: 0}, TypeRef{Named: TypeDefID{Kind: TypeDefScalar}, NamedStr: "String"}},
		2: {"dimensions", TypeDefID{Kind: TypeDefObject, Object: 0}, TypeRef{Named: TypeDefID{Kind: TypeDefObject, Object: 1}, NamedStr: "Dimensions"}},
		3: {"size", TypeDefID{Kind: TypeDefObject, Object: 1}, TypeRef{Named: TypeDefID{Kind: TypeDefScalar}, NamedStr: "String"}},
	}
	return func(parent TypeDefID, name string) (FieldDefID, TypeRef, bool) {
		for id, f := range fields {
			if f.parent == parent && f.name == name {
				return id, f.typ, true
			}
		}
		return 0, TypeRef{}, false
	}
}

func productType() TypeDefID { return TypeDefID{Kind: TypeDefObject, Object: 0} }

func TestParseFieldSet_SimpleList(t *testing.T) {
	fs, err := ParseFieldSet(productType(), `"id sku"`, fixtureLookup())
	if err != nil {
		t.Fatalf("ParseFieldSet: %v", err)
	}
	if len(fs.Items) != 2 {
		t.Fatalf("want 2 items, got %d", len(fs.Items))
	}
}

func TestParseFieldSet_NestedSelection(t *testing.T) {
	fs, err := ParseFieldSet(productType(), `"id dimensions { size }"`, fixtureLookup())
	if err != nil {
		t.Fatalf("ParseFieldSet: %v", err)
	}
	sub, ok := fs.SubSelectionAt(2)
	if !ok {
		t.Fatalf("expected subselection on dimensions field")
	}
	if len(sub.Items) != 1 || sub.Items[0].FieldID != 3 {
		t.Fatalf("unexpected subselection: %+v", sub)
	}
}

func TestParseFieldSet_UnknownFieldFails(t *testing.T) {
	if _, err := ParseFieldSet(productType(), `"nope"`, fixtureLookup()); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseFieldSet_MissingRequiredSubSelectionFails(t *testing.T) {
	if _, err := ParseFieldSet(productType(), `"dimensions"`, fixtureLookup()); err == nil {
		t.Fatalf("expected error: composite field without subselection")
	}
}

func TestParseFieldSet_SubSelectionOnScalarFails(t *testing.T) {
	if _, err := ParseFieldSet(productType(), `"id { nope }"`, fixtureLookup()); err == nil {
		t.Fatalf("expected error: subselection on scalar field")
	}
}

func TestUnionFieldSets_IsCommutativeAndIdempotent(t *testing.T) {
	lookup := fixtureLookup()
	a, _ := ParseFieldSet(productType(), `"id dimensions { size }"`, lookup)
	b, _ := ParseFieldSet(productType(), `"sku dimensions { size }"`, lookup)

	ab := UnionFieldSets(a, b)
	ba := UnionFieldSets(b, a)
	if !ab.Equal(ba) {
		t.Fatalf("union is not commutative:\n  a∪b = %+v\n  b∪a = %+v", ab, ba)
	}

	if !UnionFieldSets(a, a).Equal(a) {
		t.Fatalf("union is not idempotent")
	}

	if len(ab.Items) != 3 {
		t.Fatalf("want 3 merged top-level items (id, sku, dimensions), got %d", len(ab.Items))
	}
}

func TestFieldSet_Empty(t *testing.T) {
	var fs FieldSet
	if !fs.Empty() {
		t.Fatalf("zero-value FieldSet should be empty")
	}
	fs, _ = ParseFieldSet(productType(), `"id"`, fixtureLookup())
	if fs.Empty() {
		t.Fatalf("non-empty field set reported empty")
	}
}
