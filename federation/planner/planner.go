// Package planner is the logical planner (spec.md §4.6, component C6): it
// walks the operation graph federation/opgraph built, picks the resolver
// that services each unprovided field, and emits a dependency DAG of
// subgraph fetches an executor can run.
package planner

import (
	"sort"

	"github.com/graphfed/supergraph-planner/federation/opgraph"
	"github.com/graphfed/supergraph-planner/federation/schema"
)

// LogicalPlanID indexes a LogicalPlanDag's Plans slice.
type LogicalPlanID int32

// LogicalPlan is one unit of fetch in the final DAG: a resolver rooted at
// an entity, the operation fields it services (at any depth reachable
// through its own providable chain, not only its "entry" fields), the
// upstream data it needs supplied, and the child plans nested inside its
// selection (spec.md §4.6 "Output").
type LogicalPlan struct {
	ID         LogicalPlanID
	Resolver   schema.ResolverDefID
	Entity     schema.EntityID
	SubgraphID schema.SubgraphID

	// QueryPath names the field chain from the operation root down to the
	// selection set holding this plan's entry field(s), the entry fields
	// themselves excluded; used for error attribution and by the executor
	// to locate entity representations.
	QueryPath []string

	// FieldIDs are every operation field this plan resolves, in discovery
	// order: its entry field(s) plus any descendant fields reached by
	// continuing traversal in the same subgraph without crossing to a new
	// resolver (spec.md §4.5.1).
	FieldIDs []opgraph.FieldID

	// RequiredInput is the union of per-subgraph @requires/@key/@authorized
	// field sets this plan's fields depend on, supplied by upstream plans.
	RequiredInput schema.FieldSet

	Children []LogicalPlanID
}

// ParentToChildEdge is a happens-before constraint: Child may not start
// executing before Parent has completed (spec.md §5 "Downstream
// concurrency").
type ParentToChildEdge struct {
	Parent LogicalPlanID
	Child  LogicalPlanID
}

// LogicalPlanDag is the planner's output (spec.md §6.2).
type LogicalPlanDag struct {
	Plans []LogicalPlan
	Roots []LogicalPlanID
	Edges []ParentToChildEdge
}

// Plan returns p's LogicalPlan by id.
func (d *LogicalPlanDag) Plan(id LogicalPlanID) *LogicalPlan { return &d.Plans[id] }

// Solver runs the per-selection-set algorithm of spec.md §4.6 against a
// Graph built by opgraph.Build.
type Solver struct {
	schema *schema.Schema
	op     opgraph.Operation
	g      *opgraph.Graph

	dag          LogicalPlanDag
	fieldPlan    map[opgraph.FieldID]LogicalPlanID
	providableOf map[opgraph.FieldID]opgraph.NodeID // the ProvidableField node actually serving each planned field
}

// Solve builds the logical plan DAG for g (built by opgraph.Build against
// sch and op).
func Solve(sch *schema.Schema, op opgraph.Operation, g *opgraph.Graph) (*LogicalPlanDag, error) {
	s := &Solver{
		schema:    sch,
		op:        op,
		g:         g,
		fieldPlan: map[opgraph.FieldID]LogicalPlanID{},
	}

	roots, err := s.solveChildren(opgraph.Root, nil, opgraph.Root, nil)
	if err != nil {
		return nil, err
	}
	s.dag.Roots = roots

	s.wireRequires()

	return &s.dag, nil
}

// solveChildren plans the live Field-edge children of parentNode. plan is
// the LogicalPlan already servicing parentNode (nil at the operation
// root), and providable is the ProvidableField node currently anchoring
// it (meaningless when plan is nil). path is the query path accumulated
// so far, for error attribution.
func (s *Solver) solveChildren(parentNode opgraph.NodeID, plan *LogicalPlan, providable opgraph.NodeID, path []string) ([]LogicalPlanID, error) {
	var order []childRef
	for _, e := range s.g.OutEdgesOfKind(parentNode, opgraph.EdgeField) {
		n := s.g.Node(e.To)
		if n.Flags.Has(opgraph.Typename) {
			continue // the executor reads __typename off the subgraph payload directly
		}
		order = append(order, childRef{node: e.To, fid: n.FieldID})
	}

	// done tracks which of order's entries (by index) are already planned;
	// kept as an ordered slice throughout rather than a map so that field
	// assignment order, and therefore the emitted plan DAG, does not depend
	// on Go's randomized map iteration (spec.md §8 invariant 5: planning is
	// deterministic).
	done := make([]bool, len(order))
	remaining := len(order)

	// Step 1 (spec.md §4.6 step 1): absorb same-subgraph continuations into
	// the already-active plan before spawning anything new.
	if plan != nil {
		for i, c := range order {
			if pf, ok := s.continuationProvidable(providable, c.node); ok {
				plan.FieldIDs = append(plan.FieldIDs, c.fid)
				s.fieldPlan[c.fid] = plan.ID
				s.setProvidableFor(c.fid, pf)
				done[i] = true
				remaining--
			}
		}
	}

	var spawned []LogicalPlanID
	fieldProvidable := map[opgraph.FieldID]opgraph.NodeID{}

	// Step 2 (spec.md §4.6 step 2): repeatedly pick the resolver candidate
	// covering the most remaining fields.
	for remaining > 0 {
		cand, ok := s.bestCandidate(providable, order, done)
		if !ok {
			return nil, errCouldNotPlanAnyField(missingNames(order, done, s.op), path)
		}

		newPlan := s.newPlan(cand.resolverNode, path)
		for i, idx := range cand.members {
			c := order[idx]
			newPlan.FieldIDs = append(newPlan.FieldIDs, c.fid)
			s.fieldPlan[c.fid] = newPlan.ID
			fieldProvidable[c.fid] = cand.providable[i]
			done[idx] = true
			remaining--
		}
		spawned = append(spawned, newPlan.ID)
	}

	// Step 3: recurse into every planned field's own subselection, anchored
	// on the providable that actually serves it. childPlanID is re-resolved
	// to a fresh *LogicalPlan on either side of the recursive call rather
	// than held across it: the recursion below spawns more plans of its
	// own, and each spawn can grow s.dag.Plans past its current capacity,
	// which reallocates the backing array and would strand any pointer
	// taken into the old one.
	for _, c := range order {
		childPlanID, ok := s.fieldPlan[c.fid]
		if !ok {
			continue // a TypenameField-only child never got a plan; nothing to recurse into.
		}
		anchor, ok := fieldProvidable[c.fid]
		if !ok {
			anchor, _ = s.providableFor(c.fid)
		}
		grandchildren, err := s.solveChildren(c.node, s.dag.Plan(childPlanID), anchor, append(append([]string{}, path...), s.fieldLabel(c.fid)))
		if err != nil {
			return nil, err
		}
		s.dag.Plan(childPlanID).Children = append(s.dag.Plan(childPlanID).Children, grandchildren...)
	}

	return spawned, nil
}

// candidate is one resolver's coverage of the currently unplanned children
// at a solveChildren level: which ProvidableField node serves each member
// (parallel to members, used to anchor that member's own recursion).
type candidate struct {
	resolverNode opgraph.NodeID
	members      []int // indices into the caller's order slice
	providable   []opgraph.NodeID
}

// bestCandidate groups the still-unplanned entries of order by the resolver
// that would serve them, scoped to providable's own CreateChildResolver
// edges (spec.md §4.5 step 3: a resolver is only reachable from the
// providable context that spawned it), and returns the group covering the
// most fields, breaking ties on the lower ResolverDefID (spec.md §4.6 step
// 2b). Both the grouping and the tie-break walk data in graph-insertion
// order, never a map, so the result does not depend on map iteration order.
func (s *Solver) bestCandidate(providable opgraph.NodeID, order []childRef, done []bool) (candidate, bool) {
	type group struct {
		resolverNode opgraph.NodeID
		resolverDef  schema.ResolverDefID
		members      []int
		providable   []opgraph.NodeID
	}
	var groups []group
	groupAt := map[opgraph.NodeID]int{}

	for _, re := range s.g.OutEdgesOfKind(providable, opgraph.EdgeCreateChildResolver) {
		resolverNode := re.To
		if s.g.IsNodeDeleted(resolverNode) {
			continue
		}
		gi, ok := groupAt[resolverNode]
		if !ok {
			gi = len(groups)
			groupAt[resolverNode] = gi
			groups = append(groups, group{resolverNode: resolverNode, resolverDef: s.g.Node(resolverNode).DefinitionID})
		}
		for _, ce := range s.g.OutEdgesOfKind(resolverNode, opgraph.EdgeCanProvide) {
			for _, pe := range s.g.OutEdgesOfKind(ce.To, opgraph.EdgeProvides) {
				idx, ok := unplannedIndex(order, done, pe.To)
				if !ok {
					continue
				}
				groups[gi].members = append(groups[gi].members, idx)
				groups[gi].providable = append(groups[gi].providable, ce.To)
			}
		}
	}

	best := -1
	for i, g := range groups {
		if len(g.members) == 0 {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		bg := groups[best]
		if len(g.members) > len(bg.members) || (len(g.members) == len(bg.members) && g.resolverDef < bg.resolverDef) {
			best = i
		}
	}
	if best == -1 {
		return candidate{}, false
	}
	g := groups[best]
	return candidate{resolverNode: g.resolverNode, members: g.members, providable: g.providable}, true
}

func unplannedIndex(order []childRef, done []bool, node opgraph.NodeID) (int, bool) {
	for i, c := range order {
		if done[i] {
			continue
		}
		if c.node == node {
			return i, true
		}
	}
	return 0, false
}

// continuationProvidable reports whether childQueryField can be served by
// staying on currentProvidable's own subgraph rather than spawning a new
// plan: ingestParentProvidedPath (federation/opgraph/builder.go) wires this
// as a ProvidableField reached by a direct CanProvide edge from the parent
// ProvidableField itself, with no intervening Resolver node.
func (s *Solver) continuationProvidable(currentProvidable, childQueryField opgraph.NodeID) (opgraph.NodeID, bool) {
	if s.g.Node(currentProvidable).Kind != opgraph.NodeProvidableField {
		return 0, false // the operation root never continues; its children always spawn a resolver
	}
	for _, pe := range s.g.InEdgesOfKind(childQueryField, opgraph.EdgeProvides) {
		for _, ce := range s.g.InEdgesOfKind(pe.From, opgraph.EdgeCanProvide) {
			if ce.From == currentProvidable {
				return pe.From, true
			}
		}
	}
	return 0, false
}

// newPlan allocates a LogicalPlan rooted at resolverNode.
func (s *Solver) newPlan(resolverNode opgraph.NodeID, path []string) *LogicalPlan {
	n := s.g.Node(resolverNode)
	resolver := s.schema.Resolver(n.DefinitionID)
	id := LogicalPlanID(len(s.dag.Plans))
	s.dag.Plans = append(s.dag.Plans, LogicalPlan{
		ID:         id,
		Resolver:   n.DefinitionID,
		Entity:     n.EntityDefinitionID,
		SubgraphID: resolver.EndpointID,
		QueryPath:  append([]string{}, path...),
	})
	return s.dag.Plan(id)
}

// wireRequires adds a ParentToChildEdge for every EdgeRequires edge whose
// two endpoints landed in different plans, and folds each plan's required
// schema fields into its RequiredInput. s.dag.Edges is explicitly sorted
// afterward so the result does not depend on graph traversal order.
func (s *Solver) wireRequires() {
	type edgeKey struct{ parent, child LogicalPlanID }
	seen := map[edgeKey]bool{}
	required := map[LogicalPlanID][]schema.FieldDefID{}

	for i := 0; i < s.g.NodeCount(); i++ {
		nid := opgraph.NodeID(i)
		if s.g.IsNodeDeleted(nid) {
			continue
		}
		n := s.g.Node(nid)
		if n.Kind != opgraph.NodeQueryField {
			continue
		}
		dependentPlan, ok := s.fieldPlan[n.FieldID]
		if !ok {
			continue
		}
		for _, e := range s.g.OutEdgesOfKind(nid, opgraph.EdgeRequires) {
			reqNode := s.g.Node(e.To)
			requiredPlan, ok := s.fieldPlan[reqNode.FieldID]
			if !ok || requiredPlan == dependentPlan {
				continue
			}
			key := edgeKey{parent: requiredPlan, child: dependentPlan}
			if !seen[key] {
				seen[key] = true
				s.dag.Edges = append(s.dag.Edges, ParentToChildEdge{Parent: requiredPlan, Child: dependentPlan})
			}
			if def, ok := s.op.FieldDefinition(reqNode.FieldID); ok {
				required[dependentPlan] = append(required[dependentPlan], def)
			}
		}
	}

	sort.Slice(s.dag.Edges, func(i, j int) bool {
		a, b := s.dag.Edges[i], s.dag.Edges[j]
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		return a.Child < b.Child
	})

	for planID, defs := range required {
		sort.Slice(defs, func(i, j int) bool { return defs[i] < defs[j] })
		items := make([]schema.FieldSetItem, 0, len(defs))
		last := schema.FieldDefID(-1)
		for _, d := range defs {
			if d == last {
				continue
			}
			items = append(items, schema.FieldSetItem{FieldID: d})
			last = d
		}
		s.dag.Plan(planID).RequiredInput = schema.FieldSet{Items: items}
	}
}

func (s *Solver) fieldLabel(fid opgraph.FieldID) string {
	if def, ok := s.op.FieldDefinition(fid); ok {
		return s.schema.Field(def).Name
	}
	return "__typename"
}

// childRef pairs a Field-edge target node with the operation field it
// carries; order built from solveChildren's graph walk is itself
// deterministic (opgraph.OutEdgesOfKind preserves insertion order).
type childRef struct {
	node opgraph.NodeID
	fid  opgraph.FieldID
}

func missingNames(order []childRef, done []bool, op opgraph.Operation) []string {
	names := make([]string, 0, len(order))
	for i, c := range order {
		if done[i] {
			continue
		}
		names = append(names, fieldNameFor(op, c.fid))
	}
	sort.Strings(names)
	return names
}

func fieldNameFor(op opgraph.Operation, fid opgraph.FieldID) string {
	if nf, ok := op.(interface{ FieldName(opgraph.FieldID) string }); ok {
		return nf.FieldName(fid)
	}
	return "<field>"
}

// setProvidableFor and providableFor track, across recursion boundaries,
// which ProvidableField node actually served each planned field, so later
// passes (wiring Requires edges) have that anchor without re-deriving it.
func (s *Solver) setProvidableFor(fid opgraph.FieldID, node opgraph.NodeID) {
	if s.providableOf == nil {
		s.providableOf = map[opgraph.FieldID]opgraph.NodeID{}
	}
	s.providableOf[fid] = node
}

func (s *Solver) providableFor(fid opgraph.FieldID) (opgraph.NodeID, bool) {
	n, ok := s.providableOf[fid]
	return n, ok
}
