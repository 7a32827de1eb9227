// Package opgraph builds the providable-fields operation graph (spec.md
// §3.2, §4.5): the bipartite structure of query fields, providable fields
// and resolvers that the logical planner walks to produce a plan DAG.
package opgraph

import "github.com/graphfed/supergraph-planner/federation/schema"

// NodeID indexes into a Graph's node arena. Indices remain valid across
// RemoveNode/RemoveEdge tombstoning, which is why Builder keeps
// fieldNodes[fieldID] outside the graph itself rather than re-deriving it.
type NodeID int32

// EdgeID indexes into a Graph's edge arena.
type EdgeID int32

// NodeKind tags the variant of a Node.
type NodeKind uint8

const (
	NodeRoot NodeKind = iota
	NodeQueryField
	NodeProvidableField
	NodeResolver
)

// ProvidableKind distinguishes the two ProvidableField anchors.
type ProvidableKind uint8

const (
	// InSubgraph: reachable as ordinary traversal inside the subgraph.
	InSubgraph ProvidableKind = iota
	// OnlyProvidable: reachable only because an ancestor @provides named it.
	OnlyProvidable
)

// FieldFlags is a bitmask over a QueryField's planning-relevant properties.
type FieldFlags uint8

const (
	Indispensable  FieldFlags = 1 << iota // the client asked for it
	Extra                                 // the planner introduced it
	LeafNode                              // no subselection
	IsCompositeType                       // output type can carry a selection set
	Typename                              // this is a __typename selection
)

func (f FieldFlags) Has(bit FieldFlags) bool { return f&bit != 0 }

// Node is a tagged union over Root/QueryField/ProvidableField/Resolver
// (spec.md §3.2).
type Node struct {
	Kind NodeKind

	// QueryField
	FieldID FieldID
	Flags   FieldFlags

	// ProvidableField
	ProvidableKind ProvidableKind
	SubgraphID     schema.SubgraphID
	SchemaFieldID  schema.FieldDefID
	Provides       schema.FieldSet

	// Resolver
	EntityDefinitionID schema.EntityID
	DefinitionID       schema.ResolverDefID
}

// EdgeKind tags the variant of an Edge (spec.md §3.2).
type EdgeKind uint8

const (
	EdgeField EdgeKind = iota
	EdgeTypenameField
	EdgeCreateChildResolver
	EdgeHasChildResolver
	EdgeCanProvide
	EdgeProvides
	EdgeRequires
)

// Edge connects two nodes with one of the documented semantics.
type Edge struct {
	Kind EdgeKind
	From NodeID
	To   NodeID
}

// Graph is the stable-indexed node/edge store built by Builder.Build.
// Deletion never renumbers surviving nodes: RemoveNode tombstones rather
// than compacts, matching spec.md §9 "stability of ids ... is load-bearing".
type Graph struct {
	nodes        []Node
	nodeDeleted  []bool
	edges        []Edge
	edgeDeleted  []bool
	outByNode    map[NodeID][]EdgeID
	inByNode     map[NodeID][]EdgeID
}

// Root is the synthetic parent of the operation root, always node 0.
const Root NodeID = 0

// NewGraph creates a Graph pre-seeded with the Root node.
func NewGraph() *Graph {
	g := &Graph{
		outByNode: map[NodeID][]EdgeID{},
		inByNode:  map[NodeID][]EdgeID{},
	}
	g.nodes = append(g.nodes, Node{Kind: NodeRoot})
	g.nodeDeleted = append(g.nodeDeleted, false)
	return g
}

// AddNode appends n and returns its new, permanent index.
func (g *Graph) AddNode(n Node) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.nodeDeleted = append(g.nodeDeleted, false)
	return id
}

// Node returns the node at id. Callers must check IsNodeDeleted first if id
// may have been pruned.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// IsNodeDeleted reports whether id has been tombstoned by RemoveNode.
func (g *Graph) IsNodeDeleted(id NodeID) bool { return g.nodeDeleted[id] }

// AddEdge appends e and indexes it for OutEdges/InEdges lookups.
func (g *Graph) AddEdge(kind EdgeKind, from, to NodeID) EdgeID {
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{Kind: kind, From: from, To: to})
	g.edgeDeleted = append(g.edgeDeleted, false)
	g.outByNode[from] = append(g.outByNode[from], id)
	g.inByNode[to] = append(g.inByNode[to], id)
	return id
}

// HasEdge reports whether a live edge of kind already connects from->to.
func (g *Graph) HasEdge(kind EdgeKind, from, to NodeID) bool {
	for _, eid := range g.outByNode[from] {
		if g.edgeDeleted[eid] {
			continue
		}
		e := g.edges[eid]
		if e.Kind == kind && e.To == to {
			return true
		}
	}
	return false
}

// OutEdges returns the live outgoing edges from id, in insertion order.
func (g *Graph) OutEdges(id NodeID) []Edge { return g.liveEdges(g.outByNode[id]) }

// InEdges returns the live incoming edges to id, in insertion order.
func (g *Graph) InEdges(id NodeID) []Edge { return g.liveEdges(g.inByNode[id]) }

func (g *Graph) liveEdges(ids []EdgeID) []Edge {
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		if !g.edgeDeleted[id] {
			out = append(out, g.edges[id])
		}
	}
	return out
}

// OutEdgesOfKind filters OutEdges by kind.
func (g *Graph) OutEdgesOfKind(id NodeID, kind EdgeKind) []Edge {
	return filterByKind(g.OutEdges(id), kind)
}

// InEdgesOfKind filters InEdges by kind.
func (g *Graph) InEdgesOfKind(id NodeID, kind EdgeKind) []Edge {
	return filterByKind(g.InEdges(id), kind)
}

func filterByKind(edges []Edge, kind EdgeKind) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// RemoveNode tombstones id and every edge touching it. Surviving node ids
// are never renumbered.
func (g *Graph) RemoveNode(id NodeID) {
	g.nodeDeleted[id] = true
	for _, eid := range g.outByNode[id] {
		g.edgeDeleted[eid] = true
	}
	for _, eid := range g.inByNode[id] {
		g.edgeDeleted[eid] = true
	}
}

// NodeCount returns the number of nodes ever allocated, live or tombstoned.
func (g *Graph) NodeCount() int { return len(g.nodes) }
