package schema_test

import (
	"testing"

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
  reviews: [Review!]! @join__field(graph: REVIEWS, requires: "name")
  internalNotes: String @inaccessible @join__field(graph: PRODUCTS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: REVIEWS)
  body: String! @join__field(graph: REVIEWS)
  product: Product! @join__field(graph: REVIEWS, provides: "name")
}
`

func mustParse(t *testing.T, sdl string) *parser.Parser {
	t.Helper()
	l := lexer.New(sdl)
	p := parser.New(l)
	return p
}

func buildTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	p := mustParse(t, testSupergraphSDL)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("SDL parse errors: %v", p.Errors())
	}

	b := schema.NewBuilder()
	sch, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return sch
}

func TestBuilder_RegistersSubgraphsFromJoinGraphEnum(t *testing.T) {
	sch := buildTestSchema(t)
	if sch.SubgraphCount() != 2 {
		t.Fatalf("want 2 subgraphs, got %d", sch.SubgraphCount())
	}
	if _, ok := sch.SubgraphByName("products"); !ok {
		t.Fatalf("missing products subgraph")
	}
	if _, ok := sch.SubgraphByName("reviews"); !ok {
		t.Fatalf("missing reviews subgraph")
	}
}

func TestBuilder_RegistersEntityResolverPerKeyedSubgraph(t *testing.T) {
	sch := buildTestSchema(t)
	productID, ok := sch.ObjectByName("Product")
	if !ok {
		t.Fatalf("Product type not found")
	}
	entity := schema.EntityID{Kind: schema.EntityObject, Object: productID}

	products, _ := sch.SubgraphByName("products")
	reviews, _ := sch.SubgraphByName("reviews")

	if len(sch.EntityResolvers(entity, products)) != 1 {
		t.Fatalf("want 1 entity resolver for Product in products subgraph")
	}
	if len(sch.EntityResolvers(entity, reviews)) != 1 {
		t.Fatalf("want 1 entity resolver for Product in reviews subgraph")
	}
}

func TestBuilder_FieldResolvableInOnlyItsOwnSubgraphs(t *testing.T) {
	sch := buildTestSchema(t)
	productID, _ := sch.ObjectByName("Product")
	entity := schema.EntityID{Kind: schema.EntityObject, Object: productID}

	nameField, ok := sch.FieldByName(entity, "name")
	if !ok {
		t.Fatalf("Product.name not found")
	}
	products, _ := sch.SubgraphByName("products")
	reviews, _ := sch.SubgraphByName("reviews")

	if !sch.IsFieldResolvableIn(nameField, products) {
		t.Fatalf("Product.name should be resolvable in products")
	}
	if sch.IsFieldResolvableIn(nameField, reviews) {
		t.Fatalf("Product.name should not be resolvable in reviews")
	}
}

func TestBuilder_ParsesRequiresAndProvides(t *testing.T) {
	sch := buildTestSchema(t)
	productID, _ := sch.ObjectByName("Product")
	productEntity := schema.EntityID{Kind: schema.EntityObject, Object: productID}
	reviewID, _ := sch.ObjectByName("Review")
	reviewEntity := schema.EntityID{Kind: schema.EntityObject, Object: reviewID}

	reviews, _ := sch.SubgraphByName("reviews")

	reviewsField, _ := sch.FieldByName(productEntity, "reviews")
	requires, ok := sch.RequiresForSubgraph(reviewsField, reviews)
	if !ok || requires.Empty() {
		t.Fatalf("expected @requires(name) on Product.reviews")
	}

	productField, _ := sch.FieldByName(reviewEntity, "product")
	provides, ok := sch.ProvidesForSubgraph(productField, reviews)
	if !ok || provides.Empty() {
		t.Fatalf("expected @provides(name) on Review.product")
	}
}

func TestBuilder_MarksInaccessibleField(t *testing.T) {
	sch := buildTestSchema(t)
	productID, _ := sch.ObjectByName("Product")
	entity := schema.EntityID{Kind: schema.EntityObject, Object: productID}

	notesField, ok := sch.FieldByName(entity, "internalNotes")
	if !ok {
		t.Fatalf("internalNotes field not found")
	}
	if !sch.Field(notesField).Inaccessible {
		t.Fatalf("internalNotes should be inaccessible")
	}
}

func TestBuilder_UnknownSubgraphNameFails(t *testing.T) {
	const badSDL = `
enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products.example.com")
}

type Query {
  x: String @join__field(graph: NOPE)
}
`
	p := mustParse(t, badSDL)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("SDL parse errors: %v", p.Errors())
	}

	b := schema.NewBuilder()
	if _, err := b.Build(doc); err == nil {
		t.Fatalf("expected build error for unknown subgraph NOPE")
	}
}

const lookupSupergraphSDL = `
enum join__Graph {
  INVENTORY @join__graph(name: "inventory", url: "http://inventory.example.com")
}

input NestedInput {
  id: ID!
}

type Query {
  productBatch(nested: [NestedInput!]!): [Product!]! @lookup @join__field(graph: INVENTORY)
}

type Product @join__type(graph: INVENTORY, key: "nested { id }") {
  nested: Nested! @join__field(graph: INVENTORY)
  args: JSON @join__field(graph: INVENTORY)
}

type Nested @join__type(graph: INVENTORY) {
  id: ID! @join__field(graph: INVENTORY)
}

scalar JSON
`

func TestBuilder_LookupMatchesNestedBatchKey(t *testing.T) {
	p := mustParse(t, lookupSupergraphSDL)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("SDL parse errors: %v", p.Errors())
	}

	b := schema.NewBuilder()
	sch, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	productID, ok := sch.ObjectByName("Product")
	if !ok {
		t.Fatalf("Product type not found")
	}
	entity := schema.EntityID{Kind: schema.EntityObject, Object: productID}
	rootQueryID, _ := sch.RootQuery()
	rootEntity := schema.EntityID{Kind: schema.EntityObject, Object: rootQueryID}

	fieldID, ok := sch.FieldByName(rootEntity, "productBatch")
	if !ok {
		t.Fatalf("Query.productBatch not found")
	}

	field := sch.Field(fieldID)
	if len(field.ResolverIDs) == 0 {
		t.Fatalf("expected a resolver registered for productBatch")
	}

	var found bool
	for _, rID := range field.ResolverIDs {
		r := sch.Resolver(rID)
		if r.Kind != schema.ResolverSelectionSetExtension {
			continue
		}
		found = true
		if r.EntityID != entity {
			t.Fatalf("lookup resolver should target Product entity")
		}
		if !r.HasKeyFields {
			t.Fatalf("lookup resolver should carry the matched key")
		}
		keySet := sch.FieldSet(r.KeyFieldsRecord)
		if keySet.Empty() {
			t.Fatalf("matched key field set should not be empty")
		}
	}
	if !found {
		t.Fatalf("expected a ResolverSelectionSetExtension resolver for @lookup")
	}
}

func TestBuilder_LookupWithNoMatchingKeyFails(t *testing.T) {
	const badSDL = `
enum join__Graph {
  INVENTORY @join__graph(name: "inventory", url: "http://inventory.example.com")
}

input NestedInput {
  y: ID!
}

type Query {
  productBatch(x: [NestedInput!]!): [Product!]! @lookup @join__field(graph: INVENTORY)
}

type Product @join__type(graph: INVENTORY, key: "nested { id }") {
  nested: Nested! @join__field(graph: INVENTORY)
}

type Nested @join__type(graph: INVENTORY) {
  id: ID! @join__field(graph: INVENTORY)
}
`
	p := mustParse(t, badSDL)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("SDL parse errors: %v", p.Errors())
	}

	b := schema.NewBuilder()
	_, err := b.Build(doc)
	if err == nil {
		t.Fatalf("expected LookupNoMatchingKey build error")
	}
	buildErrs, ok := err.(schema.BuildErrors)
	if !ok || len(buildErrs) == 0 {
		t.Fatalf("expected BuildErrors, got %T: %v", err, err)
	}
	var sawLookupErr bool
	for _, e := range buildErrs {
		if e.Kind == schema.ErrLookupNoMatchingKey {
			sawLookupErr = true
		}
	}
	if !sawLookupErr {
		t.Fatalf("expected an ErrLookupNoMatchingKey among: %v", buildErrs)
	}
}
