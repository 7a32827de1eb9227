package planner_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/graphfed/supergraph-planner/federation/operation"
	"github.com/graphfed/supergraph-planner/federation/opgraph"
	"github.com/graphfed/supergraph-planner/federation/planner"
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
}

type Review @join__type(graph: REVIEWS, key: "id") {
  id: ID! @join__field(graph: REVIEWS)
  body: String! @join__field(graph: REVIEWS)
}
`

func buildSchema(t *testing.T) *schema.Schema {
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

func planQuery(t *testing.T, sch *schema.Schema, query string) (*operation.Document, *planner.LogicalPlanDag) {
	t.Helper()
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("query parse errors: %v", p.Errors())
	}

	op, err := operation.Build(sch, doc, "")
	if err != nil {
		t.Fatalf("operation.Build: %v", err)
	}
	g, err := opgraph.Build(sch, op)
	if err != nil {
		t.Fatalf("opgraph.Build: %v", err)
	}
	dag, err := planner.Solve(sch, op, g)
	if err != nil {
		t.Fatalf("planner.Solve: %v", err)
	}
	return op, dag
}

const requiresChainQuery = `query { product(id: "1") { id name reviews { id body } } }`

// TestSolve_RequiresChainSpansTwoPlans exercises the "requires chain" shape:
// Product.reviews lives only in REVIEWS and requires Product.name, which
// only PRODUCTS can resolve, so the planner must spawn a child plan in
// REVIEWS whose RequiredInput carries both the @key ("id") and the
// @requires ("name") fields supplied by the parent plan.
func TestSolve_RequiresChainSpansTwoPlans(t *testing.T) {
	sch := buildSchema(t)
	op, dag := planQuery(t, sch, requiresChainQuery)

	if len(dag.Plans) != 2 {
		t.Fatalf("len(Plans) = %d, want 2", len(dag.Plans))
	}

	productsID, ok := sch.SubgraphByName("products")
	if !ok {
		t.Fatalf("no products subgraph")
	}
	reviewsID, ok := sch.SubgraphByName("reviews")
	if !ok {
		t.Fatalf("no reviews subgraph")
	}

	var productPlan, reviewsPlan *planner.LogicalPlan
	for i := range dag.Plans {
		p := &dag.Plans[i]
		switch p.SubgraphID {
		case productsID:
			productPlan = p
		case reviewsID:
			reviewsPlan = p
		}
	}
	if productPlan == nil || reviewsPlan == nil {
		t.Fatalf("expected one plan per subgraph, got %+v", dag.Plans)
	}

	if !containsFieldNamed(op, productPlan.FieldIDs, "id") || !containsFieldNamed(op, productPlan.FieldIDs, "name") {
		t.Fatalf("products plan missing id/name: %v", fieldNames(op, productPlan.FieldIDs))
	}
	if !containsFieldNamed(op, reviewsPlan.FieldIDs, "reviews") {
		t.Fatalf("reviews plan missing reviews field: %v", fieldNames(op, reviewsPlan.FieldIDs))
	}

	wantRequired := map[string]bool{"id": true, "name": true}
	gotRequired := map[string]bool{}
	for _, item := range reviewsPlan.RequiredInput.Items {
		gotRequired[sch.Field(item.FieldID).Name] = true
	}
	if diff := cmp.Diff(wantRequired, gotRequired); diff != "" {
		t.Fatalf("RequiredInput mismatch (-want +got):\n%s", diff)
	}

	foundEdge := false
	for _, e := range dag.Edges {
		if e.Parent == productPlan.ID && e.Child == reviewsPlan.ID {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Fatalf("no ParentToChildEdge from products plan to reviews plan: %v", dag.Edges)
	}
}

// TestSolve_IsDeterministic re-solves the same (schema, operation) pair and
// requires the resulting DAG be structurally identical both times (spec.md
// §8 invariant 5): plan membership, field order within each plan, and edge
// order must never depend on map iteration.
func TestSolve_IsDeterministic(t *testing.T) {
	sch := buildSchema(t)

	_, first := planQuery(t, sch, requiresChainQuery)
	_, second := planQuery(t, sch, requiresChainQuery)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Solve is not deterministic across runs (-first +second):\n%s", diff)
	}
}

func containsFieldNamed(op *operation.Document, ids []opgraph.FieldID, name string) bool {
	for _, id := range ids {
		if op.FieldName(id) == name {
			return true
		}
	}
	return false
}

func fieldNames(op *operation.Document, ids []opgraph.FieldID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = op.FieldName(id)
	}
	return names
}
