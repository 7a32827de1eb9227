package sdl_test

import (
	"strings"
	"testing"

	"github.com/graphfed/supergraph-planner/federation/schema"
	"github.com/graphfed/supergraph-planner/federation/sdl"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

const testSupergraphSDL = `
"""A point in time, encoded as RFC 3339."""
scalar DateTime @specifiedBy(url: "https://tools.ietf.org/html/rfc3339")

enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products.example.com")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews.example.com")
}

enum Priority {
  LOW
  HIGH
  URGENT @deprecated(reason: "use HIGH instead")
}

interface Node {
  id: ID!
}

"""A product sold in the catalog."""
type Product implements Node @join__type(graph: PRODUCTS, key: "id") @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: PRODUCTS) @join__field(graph: REVIEWS)
  name: String! @join__field(graph: PRODUCTS)
  createdAt: DateTime @join__field(graph: PRODUCTS)
  internalNotes: String @inaccessible @join__field(graph: PRODUCTS)
  reviews: [Review!]! @join__field(graph: REVIEWS, requires: "name")
}

type Review implements Node @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: REVIEWS)
  body: String! @join__field(graph: REVIEWS)
  priority: Priority! @join__field(graph: REVIEWS)
}

union SearchResult @join__unionMember(graph: PRODUCTS, member: "Product") @join__unionMember(graph: REVIEWS, member: "Review")

input ProductFilter @oneOf {
  byId: ID
  byName: String
}

type Query {
  product(id: ID!): Product @join__field(graph: PRODUCTS)
  search(filter: ProductFilter): [SearchResult!]! @join__field(graph: PRODUCTS)
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

func TestEmit_StripsInaccessibleAndFederationMetadata(t *testing.T) {
	out := sdl.Emit(buildTestSchema(t))

	for _, unwanted := range []string{"internalNotes", "join__Graph", "@join__type", "@join__field", "@inaccessible"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("emitted SDL should not contain %q:\n%s", unwanted, out)
		}
	}
}

func TestEmit_RendersPolicyDirectivesAndDescriptions(t *testing.T) {
	out := sdl.Emit(buildTestSchema(t))

	for _, want := range []string{
		`@specifiedBy(url: "https://tools.ietf.org/html/rfc3339")`,
		`@deprecated(reason: "use HIGH instead")`,
		"@oneOf",
		"type Product implements Node",
		`"A product sold in the catalog."`,
		"union SearchResult = Product | Review",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("emitted SDL missing %q:\n%s", want, out)
		}
	}
}

func TestEmit_IsDeterministicAcrossRuns(t *testing.T) {
	sch := buildTestSchema(t)
	first := sdl.Emit(sch)
	second := sdl.Emit(sch)
	if first != second {
		t.Fatalf("Emit is not deterministic:\n%s\nvs\n%s", first, second)
	}
}

// TestEmit_RoundTripsIntoEquivalentAPISchema exercises spec.md §8 invariant
// 4: the names visible in the emitted SDL form a schema equivalent to the
// input API surface, modulo the stripped categories (@inaccessible fields,
// federation join metadata, introspection). Builder.Build itself expects
// supergraph join-directive input, so the round-trip is checked by
// reparsing the emitted text and comparing declared names rather than by
// feeding it back through composition.
func TestEmit_RoundTripsIntoEquivalentAPISchema(t *testing.T) {
	out := sdl.Emit(buildTestSchema(t))

	l := lexer.New(out)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("emitted SDL failed to reparse: %v\n%s", p.Errors(), out)
	}

	names := definitionNames(doc)
	want := []string{"DateTime", "Priority", "Node", "Product", "Review", "SearchResult", "ProductFilter", "Query"}
	for _, w := range want {
		if !names[w] {
			t.Fatalf("reparsed SDL missing definition %q, got %v", w, names)
		}
	}
	if names["join__Graph"] {
		t.Fatalf("reparsed SDL should not declare join__Graph")
	}
}

func definitionNames(doc *ast.Document) map[string]bool {
	names := map[string]bool{}
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			names[d.Name.String()] = true
		case *ast.InterfaceTypeDefinition:
			names[d.Name.String()] = true
		case *ast.UnionTypeDefinition:
			names[d.Name.String()] = true
		case *ast.EnumTypeDefinition:
			names[d.Name.String()] = true
		case *ast.ScalarTypeDefinition:
			names[d.Name.String()] = true
		case *ast.InputObjectTypeDefinition:
			names[d.Name.String()] = true
		}
	}
	return names
}
