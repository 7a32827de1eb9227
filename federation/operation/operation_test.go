package operation_test

import (
	"testing"

	"github.com/graphfed/supergraph-planner/federation/operation"
	"github.com/graphfed/supergraph-planner/federation/schema"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

const testSupergraphSDL = `
enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products.example.com")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews.example.com")
}

type Query {
  product(id: ID!): Product @join__field(graph: PRODUCTS)
}

type Product @join__type(graph: PRODUCTS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: PRODUCTS) @join__field(graph: REVIEWS)
  name: String! @join__field(graph: PRODUCTS)
  tag(locale: String = "en"): String @join__field(graph: PRODUCTS)
  reviews: [Review!]! @join__field(graph: REVIEWS, requires: "name")
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: REVIEWS)
  body: String! @join__field(graph: REVIEWS)
}
`

func buildTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	l := lexer.New(testSupergraphSDL)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("SDL parse errors: %v", p.Errors())
	}
	sch, err := schema.NewBuilder().Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return sch
}

func parseOperation(t *testing.T, query string) *lexer.Lexer {
	t.Helper()
	return lexer.New(query)
}

func TestBuild_FlattensNestedSelections(t *testing.T) {
	sch := buildTestSchema(t)
	l := parseOperation(t, `query { product(id: "1") { id name reviews { id body } } }`)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("query parse errors: %v", p.Errors())
	}

	d, err := operation.Build(sch, doc, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.OperationType != "query" {
		t.Fatalf("OperationType = %q, want query", d.OperationType)
	}
	if len(d.RootSelectionSet()) != 1 {
		t.Fatalf("root selection set = %v, want 1 field", d.RootSelectionSet())
	}

	product := d.RootSelectionSet()[0]
	if d.FieldName(product) != "product" {
		t.Fatalf("FieldName(product) = %q", d.FieldName(product))
	}
	if lit, ok := d.ArgumentLiteral(product, "id"); !ok || lit != `"1"` {
		t.Fatalf("ArgumentLiteral(id) = %q, %v", lit, ok)
	}

	children := d.Subselection(product)
	if len(children) != 3 {
		t.Fatalf("children = %v, want 3", children)
	}
	names := map[string]bool{}
	for _, c := range children {
		names[d.FieldName(c)] = true
	}
	for _, want := range []string{"id", "name", "reviews"} {
		if !names[want] {
			t.Fatalf("missing child field %q in %v", want, names)
		}
	}
}

func TestBuild_DefaultArgumentsFillMissingValues(t *testing.T) {
	sch := buildTestSchema(t)
	l := parseOperation(t, `query { product(id: "1") { tag tagFr: tag(locale: "fr") } }`)
	p := parser.New(l)
	doc := p.ParseDocument()

	d, err := operation.Build(sch, doc, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	product := d.RootSelectionSet()[0]
	children := d.Subselection(product)
	bareTag, explicitFr := children[0], children[1]

	tagDefID, ok := sch.FieldByName(mustEntity(t, sch, "Product"), "tag")
	if !ok {
		t.Fatalf("schema has no Product.tag field")
	}

	// tag() with no argument should be equivalent to tag(locale: "en") (the
	// declared default), since required-field resolution compares against
	// the default-filled rendering of the schema field (spec.md §4.4).
	if !d.FieldIsEquivalentTo(bareTag, tagDefID) {
		t.Fatalf("bare tag selection should be equivalent to its defaulted definition")
	}
	// tag(locale: "fr") explicitly overrides the default and must not be
	// treated as equivalent to the all-defaults rendering.
	if d.FieldIsEquivalentTo(explicitFr, tagDefID) {
		t.Fatalf("tag(locale: \"fr\") must not be equivalent to the all-defaults rendering")
	}
}

func TestBuild_TypenameHasNoDefinition(t *testing.T) {
	sch := buildTestSchema(t)
	l := parseOperation(t, `query { product(id: "1") { __typename id } }`)
	p := parser.New(l)
	doc := p.ParseDocument()

	d, err := operation.Build(sch, doc, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	product := d.RootSelectionSet()[0]
	var typenameID = d.Subselection(product)[0]
	if d.FieldName(typenameID) != "__typename" {
		t.Fatalf("expected __typename first, got %q", d.FieldName(typenameID))
	}
	if _, ok := d.FieldDefinition(typenameID); ok {
		t.Fatalf("__typename should have no FieldDefID")
	}
}

func TestBuild_UnknownOperationNameErrors(t *testing.T) {
	sch := buildTestSchema(t)
	l := parseOperation(t, `query Named { product(id: "1") { id } }`)
	p := parser.New(l)
	doc := p.ParseDocument()

	if _, err := operation.Build(sch, doc, "DoesNotExist"); err == nil {
		t.Fatalf("expected an error for an unknown operation name")
	}
}

func TestCreatePotentialExtraFieldFromRequirement_TracksParent(t *testing.T) {
	sch := buildTestSchema(t)
	l := parseOperation(t, `query { product(id: "1") { reviews { id } } }`)
	p := parser.New(l)
	doc := p.ParseDocument()

	d, err := operation.Build(sch, doc, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	product := d.RootSelectionSet()[0]
	nameDefID, ok := sch.FieldByName(mustEntity(t, sch, "Product"), "name")
	if !ok {
		t.Fatalf("schema has no Product.name field")
	}

	extra := d.CreatePotentialExtraFieldFromRequirement(product, nameDefID)
	parent, ok := d.Parent(extra)
	if !ok || parent != product {
		t.Fatalf("Parent(extra) = (%v, %v), want (%v, true)", parent, ok, product)
	}
	if key := d.ResponseKey(extra); key == "name" {
		t.Fatalf("synthetic field's response key collides with a real selection: %q", key)
	}
	if !d.IsExtra(extra) {
		t.Fatalf("materialized requirement field should report IsExtra")
	}
	if d.IsExtra(product) {
		t.Fatalf("client-selected field should not report IsExtra")
	}
}

func mustEntity(t *testing.T, sch *schema.Schema, name string) schema.EntityID {
	t.Helper()
	id, ok := sch.ObjectByName(name)
	if !ok {
		t.Fatalf("no object type %q", name)
	}
	entity, ok := schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefObject, Object: id})
	if !ok {
		t.Fatalf("EntityFromTypeDef failed for %q", name)
	}
	return entity
}
