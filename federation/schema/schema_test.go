package schema_test

import (
	"testing"

	"github.com/graphfed/supergraph-planner/federation/schema"
)

func TestSchema_RootQueryResolves(t *testing.T) {
	sch := buildTestSchema(t)
	queryID, ok := sch.RootQuery()
	if !ok {
		t.Fatalf("expected a root Query type")
	}
	if sch.Object(queryID).Name != "Query" {
		t.Fatalf("root query resolved to wrong object: %q", sch.Object(queryID).Name)
	}
	if _, ok := sch.RootMutation(); ok {
		t.Fatalf("schema under test declares no Mutation type")
	}
}

func TestSchema_TypeByNameCoversEveryKind(t *testing.T) {
	sch := buildTestSchema(t)
	for _, name := range []string{"Product", "Review", "Query"} {
		if _, ok := sch.TypeByName(name); !ok {
			t.Errorf("TypeByName(%q) not found", name)
		}
	}
	if _, ok := sch.TypeByName("DoesNotExist"); ok {
		t.Fatalf("TypeByName found a type that was never declared")
	}
}

func TestSchema_WalkVisitsEveryObjectInNameOrder(t *testing.T) {
	sch := buildTestSchema(t)
	var seen []string
	sch.Walk(schema.TypeDefVisitor{
		Object: func(_ schema.ObjectID, o schema.ObjectType) {
			seen = append(seen, o.Name)
		},
	})
	want := []string{"Product", "Query", "Review"} // alphabetical
	if len(seen) != len(want) {
		t.Fatalf("want %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("want %v, got %v", want, seen)
		}
	}
}

func TestSchema_IsTypeInaccessibleReflectsDirective(t *testing.T) {
	sch := buildTestSchema(t)
	productID, _ := sch.ObjectByName("Product")
	if sch.IsTypeInaccessible(schema.TypeDefID{Kind: schema.TypeDefObject, Object: productID}) {
		t.Fatalf("Product itself carries no @inaccessible")
	}
}
