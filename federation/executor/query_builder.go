package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphfed/supergraph-planner/federation/operation"
	"github.com/graphfed/supergraph-planner/federation/opgraph"
	"github.com/graphfed/supergraph-planner/federation/planner"
	"github.com/graphfed/supergraph-planner/federation/schema"
)

// QueryBuilder renders one LogicalPlan's fields as the GraphQL request text
// to send to that plan's subgraph, the executor-side counterpart of
// federation/sdl's schema printer: this prints operation text from dense
// field ids instead of type definitions from dense type ids.
type QueryBuilder struct {
	schema *schema.Schema
	doc    *operation.Document
}

func NewQueryBuilder(sch *schema.Schema, doc *operation.Document) *QueryBuilder {
	return &QueryBuilder{schema: sch, doc: doc}
}

// Build renders plan as an `_entities` query keyed by representations when
// isEntity is set, or as a plain root query/mutation otherwise.
func (b *QueryBuilder) Build(plan *planner.LogicalPlan, isEntity bool) (string, error) {
	var sb strings.Builder

	if isEntity {
		sb.WriteString("query($representations: [_Any!]!) {\n  _entities(representations: $representations) {\n    __typename\n")
		if err := b.writeFieldSet(&sb, plan.FieldIDs, "    "); err != nil {
			return "", err
		}
		sb.WriteString("  }\n}")
		return sb.String(), nil
	}

	opType := b.doc.OperationType
	if opType == "" {
		opType = "query"
	}

	varNames := b.collectVariables(plan.FieldIDs)
	sb.WriteString(opType)
	if len(varNames) > 0 {
		sb.WriteString("(")
		for i, name := range varNames {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%s: %s", name, b.variableTypeByName(plan.FieldIDs, name))
		}
		sb.WriteString(")")
	}
	sb.WriteString(" {\n")
	if err := b.writeFieldSet(&sb, plan.FieldIDs, "  "); err != nil {
		return "", err
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// writeFieldSet writes only the entries of fieldIDs whose parent (if any)
// isn't itself in fieldIDs — those are this plan's own selection roots —
// then recurses into each one's subselection, again restricted to ids this
// plan owns. Fields belonging to a child plan never appear in fieldIDs, so
// this never re-descends into a nested resolver's own selection.
func (b *QueryBuilder) writeFieldSet(sb *strings.Builder, fieldIDs []opgraph.FieldID, indent string) error {
	owned := make(map[opgraph.FieldID]bool, len(fieldIDs))
	for _, fid := range fieldIDs {
		owned[fid] = true
	}

	var roots []opgraph.FieldID
	for _, fid := range fieldIDs {
		if parent, ok := b.doc.Parent(fid); !ok || !owned[parent] {
			roots = append(roots, fid)
		}
	}

	for _, fid := range roots {
		b.writeField(sb, fid, owned, indent)
	}
	return nil
}

func (b *QueryBuilder) writeField(sb *strings.Builder, fid opgraph.FieldID, owned map[opgraph.FieldID]bool, indent string) {
	sb.WriteString(indent)
	sb.WriteString(b.fieldHead(fid))
	sb.WriteString(b.argsClause(fid))

	var children []opgraph.FieldID
	for _, c := range b.doc.Subselection(fid) {
		if owned[c] {
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		sb.WriteString("\n")
		return
	}
	sb.WriteString(" {\n")
	for _, c := range children {
		b.writeField(sb, c, owned, indent+"  ")
	}
	fmt.Fprintf(sb, "%s}\n", indent)
}

func (b *QueryBuilder) fieldHead(fid opgraph.FieldID) string {
	name := b.doc.FieldName(fid)
	key := b.doc.ResponseKey(fid)
	if key != "" && key != name {
		return key + ": " + name
	}
	return name
}

func (b *QueryBuilder) argsClause(fid opgraph.FieldID) string {
	names := b.doc.ArgumentNames(fid)
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, n := range names {
		lit, _ := b.doc.ArgumentLiteral(fid, n)
		parts[i] = n + ": " + lit
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (b *QueryBuilder) collectVariables(fieldIDs []opgraph.FieldID) []string {
	seen := map[string]bool{}
	var names []string
	for _, fid := range fieldIDs {
		for _, argName := range b.doc.ArgumentNames(fid) {
			lit, _ := b.doc.ArgumentLiteral(fid, argName)
			if !strings.HasPrefix(lit, "$") {
				continue
			}
			name := strings.TrimPrefix(lit, "$")
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (b *QueryBuilder) variableTypeByName(fieldIDs []opgraph.FieldID, varName string) string {
	for _, fid := range fieldIDs {
		for _, argName := range b.doc.ArgumentNames(fid) {
			lit, _ := b.doc.ArgumentLiteral(fid, argName)
			if lit != "$"+varName {
				continue
			}
			if typ, ok := b.variableType(fid, argName); ok {
				return typ
			}
		}
	}
	return "String"
}

func (b *QueryBuilder) variableType(fid opgraph.FieldID, argName string) (string, bool) {
	defID, ok := b.doc.FieldDefinition(fid)
	if !ok {
		return "", false
	}
	f := b.schema.Field(defID)
	for i := int32(0); i < f.Arguments.Count; i++ {
		a := b.schema.InputValue(f.Arguments.Start + schema.InputValueID(i))
		if a.Name == argName {
			return typeRefString(a.Type), true
		}
	}
	return "", false
}

// typeRefString mirrors federation/sdl's emitter of the same name: both
// print a schema.TypeRef by walking its ListOf chain, following
// federation/planner/planner_v2.go's getNamedType idiom. Kept as a separate
// copy rather than exported from federation/sdl, since the two packages
// print unrelated things (type definitions vs. operation variable types)
// and have no other reason to depend on each other.
func typeRefString(t schema.TypeRef) string {
	var s string
	if t.ListOf != nil {
		s = "[" + typeRefString(*t.ListOf) + "]"
	} else {
		s = t.NamedStr
	}
	if t.NonNull {
		s += "!"
	}
	return s
}
