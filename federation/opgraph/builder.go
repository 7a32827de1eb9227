package opgraph

import "github.com/graphfed/supergraph-planner/federation/schema"

// requirementStepsPerField, multiplied by the operation's field count (plus
// one), bounds the requirement-ingestion stack so a malformed schema (a provides/requires cycle composition should have
// rejected) cannot spin the builder forever (spec.md §5 resource bounds).
const requirementStepsPerField = 64

// fieldStep is a pending providable-field expansion (spec.md §4.5 step 3).
type fieldStep struct {
	parentQueryField NodeID
	parentProvidable NodeID
	fieldID          FieldID
}

// requirementStep is a pending requirement materialization (§4.5 step 4).
type requirementStep struct {
	petitioner       FieldID
	dependent        FieldID
	parentQueryField NodeID
	requiredFields   schema.FieldSet
	indispensable    bool
}

// Builder runs the seed -> double-stack-drain -> termination-check -> prune
// algorithm of spec.md §4.5, turning a validated Operation into a Graph.
type Builder struct {
	schema *schema.Schema
	op     Operation
	g      *Graph

	fieldNodes map[FieldID]NodeID
	providable map[FieldID]bool
	authorized map[FieldID]bool // @authorized already ingested for this query field

	fieldStack []fieldStep
	reqStack   []requirementStep

	stepBudget int
	errs       []error
}

// Build constructs the operation graph for op against sch.
func Build(sch *schema.Schema, op Operation) (*Graph, error) {
	b := &Builder{
		schema:     sch,
		op:         op,
		g:          NewGraph(),
		fieldNodes: map[FieldID]NodeID{},
		providable: map[FieldID]bool{},
		authorized: map[FieldID]bool{},
	}
	b.stepBudget = (len(op.FieldIDs()) + 1) * requirementStepsPerField

	b.seed()
	b.drain()
	if err := b.checkTermination(); err != nil {
		return nil, err
	}
	b.prune()

	if len(b.errs) > 0 {
		return b.g, b.errs[0]
	}
	return b.g, nil
}

func (b *Builder) seed() {
	for _, fid := range b.op.RootSelectionSet() {
		qNode := b.getOrCreateQueryFieldNode(fid, Indispensable)
		b.g.AddEdge(EdgeField, Root, qNode)
		b.fieldStack = append(b.fieldStack, fieldStep{parentQueryField: Root, parentProvidable: Root, fieldID: fid})
	}
}

func (b *Builder) drain() {
	for len(b.fieldStack) > 0 || len(b.reqStack) > 0 {
		if len(b.fieldStack) > 0 {
			step := b.fieldStack[len(b.fieldStack)-1]
			b.fieldStack = b.fieldStack[:len(b.fieldStack)-1]
			b.ingestField(step)
			continue
		}
		step := b.reqStack[len(b.reqStack)-1]
		b.reqStack = b.reqStack[:len(b.reqStack)-1]
		b.ingestRequirement(step)
	}
}

func (b *Builder) getOrCreateQueryFieldNode(fid FieldID, extraFlags FieldFlags) NodeID {
	if id, ok := b.fieldNodes[fid]; ok {
		return id
	}
	flags := extraFlags
	if def, ok := b.op.FieldDefinition(fid); ok {
		if len(b.op.Subselection(fid)) == 0 {
			flags |= LeafNode
		}
		if b.schema.Field(def).Type.IsComposite() {
			flags |= IsCompositeType
		}
	} else {
		flags |= Typename | LeafNode
	}
	id := b.g.AddNode(Node{Kind: NodeQueryField, FieldID: fid, Flags: flags})
	b.fieldNodes[fid] = id
	return id
}

// ingestField implements spec.md §4.5 step 3.
func (b *Builder) ingestField(step fieldStep) {
	fid := step.fieldID
	qNode := b.getOrCreateQueryFieldNode(fid, 0)

	fieldDefID, hasDef := b.op.FieldDefinition(fid)
	if !hasDef {
		b.providable[fid] = true
		if !b.g.HasEdge(EdgeTypenameField, step.parentQueryField, qNode) {
			b.g.AddEdge(EdgeTypenameField, step.parentQueryField, qNode)
		}
		return
	}

	if len(b.g.InEdgesOfKind(qNode, EdgeField)) == 0 {
		b.ingestAuthorized(fieldDefID, fid, qNode)
		b.g.AddEdge(EdgeField, step.parentQueryField, qNode)
	}

	field := b.schema.Field(fieldDefID)
	triedParentPath := false
	var parentPathSubgraph schema.SubgraphID
	var parentPathOK bool

	if step.parentProvidable != Root {
		parent := b.g.Node(step.parentProvidable)
		if parent.Kind == NodeProvidableField {
			triedParentPath = true
			parentPathSubgraph = parent.SubgraphID
			parentPathOK = b.ingestParentProvidedPath(parent, step, fieldDefID, field, qNode)
		}
	}

	for _, resolverID := range field.ResolverIDs {
		resolver := b.schema.Resolver(resolverID)
		if triedParentPath && parentPathOK && resolver.EndpointID == parentPathSubgraph && resolver.Kind == schema.ResolverGraphqlRootField {
			continue // traversal already reaches this field; the resolver would be redundant.
		}

		resolverNode := b.findOrCreateResolverNode(qNode, resolverID, field.ParentEntity)
		if !b.g.HasEdge(EdgeCreateChildResolver, step.parentProvidable, resolverNode) {
			b.g.AddEdge(EdgeCreateChildResolver, step.parentProvidable, resolverNode)
		}
		if !b.g.HasEdge(EdgeHasChildResolver, qNode, resolverNode) {
			b.g.AddEdge(EdgeHasChildResolver, qNode, resolverNode)
		}

		if keyFS, ok := resolver.RequiredFieldSet(); ok {
			b.pushRequirement(fid, fid, step.parentQueryField, b.schema.FieldSet(keyFS), step.indispensableOf(b, fid))
		}

		if b.resolverAlreadyProvides(resolverNode, fid) {
			continue
		}

		providesFS, _ := b.schema.ProvidesForSubgraph(fieldDefID, resolver.EndpointID)
		pNode := b.g.AddNode(Node{
			Kind: NodeProvidableField, ProvidableKind: InSubgraph,
			SubgraphID: resolver.EndpointID, SchemaFieldID: fieldDefID, Provides: providesFS,
		})
		b.g.AddEdge(EdgeCanProvide, resolverNode, pNode)
		b.g.AddEdge(EdgeProvides, pNode, qNode)
		b.providable[fid] = true

		if reqFS, ok := b.schema.RequiresForSubgraph(fieldDefID, resolver.EndpointID); ok {
			b.pushRequirement(fid, fid, step.parentQueryField, reqFS, step.indispensableOf(b, fid))
		}
		b.pushChildren(qNode, pNode, fid)
	}
}

// indispensableOf reports whether fid currently carries the Indispensable
// flag, used to propagate it onto fields materialized for its requirements.
func (s fieldStep) indispensableOf(b *Builder, fid FieldID) bool {
	return b.g.Node(b.fieldNodes[fid]).Flags.Has(Indispensable)
}

// ingestParentProvidedPath implements spec.md §4.5.1.
func (b *Builder) ingestParentProvidedPath(parent Node, step fieldStep, fieldDefID schema.FieldDefID, field schema.FieldRecord, qNode NodeID) bool {
	s := parent.SubgraphID
	_, hasRequires := b.schema.RequiresForSubgraph(fieldDefID, s)

	if b.schema.IsFieldResolvableIn(fieldDefID, s) && !hasRequires {
		ownProvides, _ := b.schema.ProvidesForSubgraph(fieldDefID, s)
		forwarded, _ := parent.Provides.SubSelectionAt(fieldDefID)
		merged := schema.UnionFieldSets(ownProvides, forwarded)

		pNode := b.g.AddNode(Node{
			Kind: NodeProvidableField, ProvidableKind: InSubgraph,
			SubgraphID: s, SchemaFieldID: fieldDefID, Provides: merged,
		})
		b.g.AddEdge(EdgeCanProvide, step.parentProvidable, pNode)
		b.g.AddEdge(EdgeProvides, pNode, qNode)
		b.providable[step.fieldID] = true
		b.pushChildren(qNode, pNode, step.fieldID)
		return true
	}

	if sub, ok := parent.Provides.SubSelectionAt(fieldDefID); ok {
		ownProvides, _ := b.schema.ProvidesForSubgraph(fieldDefID, s)
		merged := schema.UnionFieldSets(sub, ownProvides)

		pNode := b.g.AddNode(Node{
			Kind: NodeProvidableField, ProvidableKind: OnlyProvidable,
			SubgraphID: s, SchemaFieldID: fieldDefID, Provides: merged,
		})
		b.g.AddEdge(EdgeCanProvide, step.parentProvidable, pNode)
		b.g.AddEdge(EdgeProvides, pNode, qNode)
		b.providable[step.fieldID] = true
		b.pushChildren(qNode, pNode, step.fieldID)
		return true
	}

	return false
}

// findOrCreateResolverNode dedups by definition_id among the resolvers
// already hung off qNode, per spec.md §9's open question (linear scan,
// not mandated to be a hash table).
func (b *Builder) findOrCreateResolverNode(qNode NodeID, resolverID schema.ResolverDefID, entity schema.EntityID) NodeID {
	for _, e := range b.g.OutEdgesOfKind(qNode, EdgeHasChildResolver) {
		n := b.g.Node(e.To)
		if n.DefinitionID == resolverID {
			return e.To
		}
	}
	return b.g.AddNode(Node{Kind: NodeResolver, EntityDefinitionID: entity, DefinitionID: resolverID})
}

// resolverAlreadyProvides reports whether resolverNode already has a
// ProvidableField child serving fid.
func (b *Builder) resolverAlreadyProvides(resolverNode NodeID, fid FieldID) bool {
	qNode := b.fieldNodes[fid]
	for _, canProvide := range b.g.OutEdgesOfKind(resolverNode, EdgeCanProvide) {
		for _, provides := range b.g.OutEdgesOfKind(canProvide.To, EdgeProvides) {
			if provides.To == qNode {
				return true
			}
		}
	}
	return false
}

func (b *Builder) pushChildren(qNode, providableNode NodeID, fid FieldID) {
	for _, childFid := range b.op.Subselection(fid) {
		b.getOrCreateQueryFieldNode(childFid, Indispensable)
		b.fieldStack = append(b.fieldStack, fieldStep{parentQueryField: qNode, parentProvidable: providableNode, fieldID: childFid})
	}
}

// ingestAuthorized pushes the requirement items for @authorized(fields:,
// node:) the first time a query field is reached (spec.md §4.5 step 3).
func (b *Builder) ingestAuthorized(fieldDefID schema.FieldDefID, fid FieldID, qNode NodeID) {
	if b.authorized[fid] {
		return
	}
	b.authorized[fid] = true

	field := b.schema.Field(fieldDefID)
	indispensable := b.g.Node(qNode).Flags.Has(Indispensable)

	if field.AuthorizedFields != nil {
		fs := b.schema.FieldSet(*field.AuthorizedFields)
		b.pushRequirement(fid, fid, qNode, fs, indispensable)
	}
	if field.AuthorizedNodeFields != nil {
		fs := b.schema.FieldSet(*field.AuthorizedNodeFields)
		b.pushRequirement(fid, fid, qNode, fs, indispensable)
	}
}

func (b *Builder) pushRequirement(petitioner, dependent FieldID, parentQueryField NodeID, fs schema.FieldSet, indispensable bool) {
	if fs.Empty() {
		return
	}
	b.stepBudget--
	if b.stepBudget < 0 {
		b.errs = append(b.errs, errCouldNotBuildOperationGraph("requirement stack exceeded its bound; the schema likely contains a provides/requires cycle composition should have rejected"))
		return
	}
	b.reqStack = append(b.reqStack, requirementStep{
		petitioner: petitioner, dependent: dependent, parentQueryField: parentQueryField,
		requiredFields: fs, indispensable: indispensable,
	})
}

// ingestRequirement implements spec.md §4.5 step 4.
func (b *Builder) ingestRequirement(step requirementStep) {
	for _, item := range step.requiredFields.Items {
		childFid, isNew := b.resolveOrCreateRequiredField(step, item.FieldID)

		dependentNode, ok := b.fieldNodes[step.dependent]
		if !ok {
			dependentNode = b.getOrCreateQueryFieldNode(step.dependent, 0)
		}
		childNode := b.fieldNodes[childFid]
		if !b.g.HasEdge(EdgeRequires, dependentNode, childNode) {
			b.g.AddEdge(EdgeRequires, dependentNode, childNode)
		}

		if isNew {
			b.attachExtraField(step, childFid)
		}

		if !item.SubSelection.Empty() {
			b.pushRequirement(step.petitioner, childFid, childNode, item.SubSelection, step.indispensable)
		}
	}
}

// resolveOrCreateRequiredField finds a sibling field already equivalent to
// the required schema field (lowest FieldID on ties), or asks the
// Operation to materialize a new one.
func (b *Builder) resolveOrCreateRequiredField(step requirementStep, required schema.FieldDefID) (FieldID, bool) {
	var best FieldID
	found := false
	for _, e := range b.g.OutEdgesOfKind(step.parentQueryField, EdgeField) {
		sibling := b.g.Node(e.To)
		if b.op.FieldIsEquivalentTo(sibling.FieldID, required) {
			if !found || sibling.FieldID < best {
				best = sibling.FieldID
				found = true
			}
		}
	}
	if found {
		return best, false
	}

	newFid := b.op.CreatePotentialExtraFieldFromRequirement(step.petitioner, required)
	flags := Extra
	if step.indispensable {
		flags |= Indispensable
	}
	b.getOrCreateQueryFieldNode(newFid, flags)
	return newFid, true
}

// attachExtraField pushes CreateProvidableFields entries for a freshly
// materialized extra field, propagating it through every provider that
// currently covers the parent query field.
func (b *Builder) attachExtraField(step requirementStep, childFid FieldID) {
	childNode := b.fieldNodes[childFid]
	b.g.AddEdge(EdgeField, step.parentQueryField, childNode)

	provides := b.g.InEdgesOfKind(step.parentQueryField, EdgeProvides)
	if len(provides) == 0 {
		b.fieldStack = append(b.fieldStack, fieldStep{parentQueryField: step.parentQueryField, parentProvidable: Root, fieldID: childFid})
		return
	}
	for _, e := range provides {
		b.fieldStack = append(b.fieldStack, fieldStep{parentQueryField: step.parentQueryField, parentProvidable: e.From, fieldID: childFid})
	}
}

// checkTermination implements spec.md §4.5 step 5.
func (b *Builder) checkTermination() error {
	for _, fid := range b.op.FieldIDs() {
		if b.providable[fid] {
			continue
		}
		qNode, ok := b.fieldNodes[fid]
		if !ok {
			continue // never reached by seeding/requirements; not part of the plannable tree.
		}
		if len(b.g.InEdgesOfKind(qNode, EdgeTypenameField)) > 0 || len(b.g.InEdgesOfKind(qNode, EdgeProvides)) > 0 {
			continue
		}
		if def, hasDef := b.op.FieldDefinition(fid); hasDef {
			return errCouldNotPlanField(b.schema.Field(def).Name)
		}
		continue // typename fields without a Provides edge are fine; TypenameField is the providing edge for them.
	}
	return nil
}

// prune implements spec.md §4.5 step 6: remove resolvers that lead to no
// query-field leaf, transitively, along with their descendant providable
// nodes.
func (b *Builder) prune() {
	for {
		removed := false
		for id := 0; id < b.g.NodeCount(); id++ {
			nid := NodeID(id)
			if b.g.IsNodeDeleted(nid) {
				continue
			}
			n := b.g.Node(nid)
			switch n.Kind {
			case NodeResolver:
				if len(b.g.OutEdgesOfKind(nid, EdgeCanProvide)) == 0 {
					b.g.RemoveNode(nid)
					removed = true
				}
			case NodeProvidableField:
				if len(b.g.OutEdgesOfKind(nid, EdgeProvides)) == 0 && len(b.g.OutEdgesOfKind(nid, EdgeCanProvide)) == 0 {
					b.g.RemoveNode(nid)
					removed = true
				}
			}
		}
		if !removed {
			return
		}
	}
}
