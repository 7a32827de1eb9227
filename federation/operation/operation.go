// Package operation bridges a parsed client document (github.com/n9te9/
// graphql-parser's ast.Document) into the opgraph.Operation capability set
// (spec.md §6.1), the same way federation/graph/subgraph_v2.go bridges SDL
// documents into the schema builder's input. This is the only concrete
// Operation implementation in the module; alternate front-ends can supply
// their own without touching federation/opgraph or federation/planner.
package operation

import (
	"fmt"
	"sort"

	"github.com/graphfed/supergraph-planner/federation/opgraph"
	"github.com/graphfed/supergraph-planner/federation/schema"
	"github.com/n9te9/graphql-parser/ast"
)

// field is one selection occurrence: either bound to an ast.Field from the
// client document, or synthesized by the planner to satisfy a requirement.
type field struct {
	defID     schema.FieldDefID
	hasDef    bool // false only for __typename
	name      string
	arguments map[string]string // rendered argument literals, keyed by name, defaults filled in
	parent    opgraph.FieldID
	hasParent bool
	synthetic bool
}

// Document adapts one operation definition from a parsed client document
// into opgraph.Operation. Build once per request.
type Document struct {
	schema *schema.Schema

	OperationType string // "query", "mutation" or "subscription"

	fields   []field
	root     []opgraph.FieldID
	children map[opgraph.FieldID][]opgraph.FieldID
}

// Build resolves the first operation definition in doc against sch,
// expanding fragment spreads and inline fragments the way
// federation/planner/planner_v2.go's expandFragmentsInSelections does,
// except each selection becomes a graph field rather than a rewritten AST
// node. operationName selects which operation to plan when doc defines
// more than one; pass "" to take the lone (or first) operation.
func Build(sch *schema.Schema, doc *ast.Document, operationName string) (*Document, error) {
	opDef, err := findOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	rootEntity, opType, err := rootEntityFor(sch, opDef.Operation)
	if err != nil {
		return nil, err
	}

	fragments := collectFragments(doc)

	d := &Document{
		schema:        sch,
		OperationType: opType,
		children:      map[opgraph.FieldID][]opgraph.FieldID{},
	}

	ids, err := d.walkSelections(opDef.SelectionSet, rootEntity, fragments, 0)
	if err != nil {
		return nil, err
	}
	d.root = ids
	return d, nil
}

func findOperation(doc *ast.Document, name string) (*ast.OperationDefinition, error) {
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		opDef, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if first == nil {
			first = opDef
		}
		if name != "" && opDef.Name != nil && opDef.Name.String() == name {
			return opDef, nil
		}
	}
	if name != "" {
		return nil, fmt.Errorf("operation %q not found in document", name)
	}
	if first == nil {
		return nil, fmt.Errorf("document contains no operation definition")
	}
	return first, nil
}

func rootEntityFor(sch *schema.Schema, kind ast.OperationType) (schema.EntityID, string, error) {
	switch kind {
	case ast.Mutation:
		id, ok := sch.RootMutation()
		if !ok {
			return schema.EntityID{}, "", fmt.Errorf("schema declares no mutation root")
		}
		entity, _ := schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefObject, Object: id})
		return entity, "mutation", nil
	case ast.Subscription:
		id, ok := sch.RootSubscription()
		if !ok {
			return schema.EntityID{}, "", fmt.Errorf("schema declares no subscription root")
		}
		entity, _ := schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefObject, Object: id})
		return entity, "subscription", nil
	default:
		id, ok := sch.RootQuery()
		if !ok {
			return schema.EntityID{}, "", fmt.Errorf("schema declares no query root")
		}
		entity, _ := schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefObject, Object: id})
		return entity, "query", nil
	}
}

func collectFragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		if f, ok := def.(*ast.FragmentDefinition); ok {
			frags[f.Name.String()] = f
		}
	}
	return frags
}

// walkSelections flattens fields, inline fragments and fragment spreads
// into a list of opgraph field ids under parent, mirroring
// planner_v2.go's expandFragmentsInSelections but producing graph nodes
// instead of rewritten ast.Selections. depth guards against
// self-referential fragment spreads the upstream validator should already
// have rejected.
func (d *Document) walkSelections(sels []ast.Selection, parentEntity schema.EntityID, frags map[string]*ast.FragmentDefinition, depth int) ([]opgraph.FieldID, error) {
	if depth > 64 {
		return nil, fmt.Errorf("fragment nesting exceeds the depth this planner supports")
	}

	var out []opgraph.FieldID
	for _, sel := range sels {
		switch s := sel.(type) {
		case *ast.Field:
			id, err := d.addField(s, parentEntity, frags, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, id)

		case *ast.InlineFragment:
			entity := parentEntity
			if s.TypeCondition != nil {
				if e, ok := d.entityByName(s.TypeCondition.Name.String()); ok {
					entity = e
				}
			}
			nested, err := d.walkSelections(s.SelectionSet, entity, frags, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)

		case *ast.FragmentSpread:
			name := s.Name.String()
			def, ok := frags[name]
			if !ok {
				return nil, fmt.Errorf("fragment %q is not defined", name)
			}
			entity := parentEntity
			if def.TypeCondition != nil {
				if e, ok := d.entityByName(def.TypeCondition.Name.String()); ok {
					entity = e
				}
			}
			nested, err := d.walkSelections(def.SelectionSet, entity, frags, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func (d *Document) entityByName(name string) (schema.EntityID, bool) {
	if id, ok := d.schema.ObjectByName(name); ok {
		return schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefObject, Object: id})
	}
	if id, ok := d.schema.InterfaceByName(name); ok {
		return schema.EntityFromTypeDef(schema.TypeDefID{Kind: schema.TypeDefInterface, Interface: id})
	}
	return schema.EntityID{}, false
}

func (d *Document) addField(astField *ast.Field, parentEntity schema.EntityID, frags map[string]*ast.FragmentDefinition, depth int) (opgraph.FieldID, error) {
	name := astField.Name.String()
	id := opgraph.FieldID(len(d.fields))

	if name == "__typename" {
		d.fields = append(d.fields, field{name: name})
		return id, nil
	}

	defID, ok := d.schema.FieldByName(parentEntity, name)
	if !ok {
		return 0, fmt.Errorf("field %q is not defined on its parent type", name)
	}
	d.fields = append(d.fields, field{
		defID:     defID,
		hasDef:    true,
		name:      name,
		arguments: renderArguments(d.schema, defID, astField.Arguments),
	})

	if len(astField.SelectionSet) > 0 {
		outEntity, _ := schema.EntityFromTypeDef(leafTypeDef(d.schema.Field(defID).Type))
		children, err := d.walkSelections(astField.SelectionSet, outEntity, frags, depth+1)
		if err != nil {
			return 0, err
		}
		for _, c := range children {
			d.fields[c].parent, d.fields[c].hasParent = id, true
		}
		d.children[id] = children
	}
	return id, nil
}

func leafTypeDef(t schema.TypeRef) schema.TypeDefID {
	leaf := &t
	for leaf.ListOf != nil {
		leaf = leaf.ListOf
	}
	return leaf.Named
}

// renderArguments produces a canonical name->literal map for an argument
// list: every declared argument gets an entry, explicit arguments render
// via ast.Value.String() (the same rendering build.go uses for default
// values), and arguments the caller omitted fall back to the schema
// default (spec.md §4.4 "missing arguments take defaults").
func renderArguments(sch *schema.Schema, defID schema.FieldDefID, args []*ast.Argument) map[string]string {
	rendered := map[string]string{}
	for _, a := range args {
		rendered[a.Name.String()] = a.Value.String()
	}
	argRange := sch.Field(defID).Arguments
	for i := int32(0); i < argRange.Count; i++ {
		iv := sch.InputValue(argRange.Start + schema.InputValueID(i))
		if _, ok := rendered[iv.Name]; !ok && iv.HasDefault {
			rendered[iv.Name] = iv.DefaultValue
		}
	}
	return rendered
}

// argumentsEqual reports whether two rendered argument maps select the
// same value for every key present in either (spec.md §4.4 "match
// value-for-value ... order-independent").
func argumentsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// --- opgraph.Operation ------------------------------------------------

func (d *Document) FieldIDs() []opgraph.FieldID {
	ids := make([]opgraph.FieldID, len(d.fields))
	for i := range d.fields {
		ids[i] = opgraph.FieldID(i)
	}
	return ids
}

func (d *Document) RootSelectionSet() []opgraph.FieldID { return d.root }

func (d *Document) Subselection(id opgraph.FieldID) []opgraph.FieldID { return d.children[id] }

func (d *Document) FieldDefinition(id opgraph.FieldID) (schema.FieldDefID, bool) {
	f := d.fields[id]
	return f.defID, f.hasDef
}

func (d *Document) FieldIsEquivalentTo(id opgraph.FieldID, required schema.FieldDefID) bool {
	f := d.fields[id]
	if !f.hasDef || f.defID != required {
		return false
	}
	want := renderArguments(d.schema, required, nil)
	return argumentsEqual(f.arguments, want)
}

func (d *Document) CreatePotentialExtraFieldFromRequirement(petitioner opgraph.FieldID, required schema.FieldDefID) opgraph.FieldID {
	id := opgraph.FieldID(len(d.fields))
	d.fields = append(d.fields, field{
		defID:     required,
		hasDef:    true,
		name:      d.schema.Field(required).Name,
		arguments: renderArguments(d.schema, required, nil),
		parent:    petitioner,
		hasParent: true,
		synthetic: true,
	})
	return id
}

// ResponseKey returns the synthesized name to use for id in an emitted
// subgraph fetch document: the client's own field name for an ordinary
// selection, or a collision-free `_<name><hex>` key for an extra field the
// planner materialized (spec.md §4.6 step 4).
func (d *Document) ResponseKey(id opgraph.FieldID) string {
	f := d.fields[id]
	if !f.synthetic {
		return f.name
	}
	return fmt.Sprintf("_%s%x", f.name, uint32(f.defID))
}

// FieldName returns the schema field name (or "__typename") backing id,
// for diagnostics and SDL/query construction.
func (d *Document) FieldName(id opgraph.FieldID) string { return d.fields[id].name }

// IsExtra reports whether id is a planner-materialized EXTRA field —
// inserted by CreatePotentialExtraFieldFromRequirement to satisfy a
// @requires/@provides/@authorized field set — rather than one the client's
// own operation selected. spec.md §3.3: "Extra QueryFields introduced for
// requirements ... are tagged EXTRA so they are stripped from the
// client-visible result"; federation/executor's response pruning is the
// consumer of this.
func (d *Document) IsExtra(id opgraph.FieldID) bool { return d.fields[id].synthetic }

// Parent returns the field id's selecting field, if any (false for
// top-level selections). Used to render query_path diagnostics without
// re-walking the operation graph.
func (d *Document) Parent(id opgraph.FieldID) (opgraph.FieldID, bool) {
	f := d.fields[id]
	return f.parent, f.hasParent
}

// ArgumentNames returns the names of id's canonical rendered arguments
// (explicit plus defaulted), sorted by name.
func (d *Document) ArgumentNames(id opgraph.FieldID) []string {
	names := make([]string, 0, len(d.fields[id].arguments))
	for k := range d.fields[id].arguments {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *Document) ArgumentLiteral(id opgraph.FieldID, name string) (string, bool) {
	v, ok := d.fields[id].arguments[name]
	return v, ok
}
