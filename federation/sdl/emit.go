// Package sdl is the SDL emitter (spec.md §4.7, component C7): it prints
// the frozen schema federation/schema built back out as GraphQL SDL,
// stripping everything that only exists to drive composition (join
// metadata, @inaccessible definitions, introspection names).
package sdl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphfed/supergraph-planner/federation/schema"
)

var builtinScalarNames = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

func isFederationMetaName(name string) bool {
	if strings.HasPrefix(name, "join__") || strings.HasPrefix(name, "link__") {
		return true
	}
	switch name {
	case "_Any", "_Entity", "_Service", "_FieldSet":
		return true
	}
	return false
}

func isIntrospectionName(name string) bool {
	return strings.HasPrefix(name, "__")
}

func isFederationRootField(name string) bool {
	return name == "_service" || name == "_entities"
}

// Emit renders sch as GraphQL SDL text. The output is deterministic for a
// given schema: type definitions are visited in name order (schema.Walk)
// and every per-kind field/value/argument list is emitted in its declared
// (arena) order.
func Emit(sch *schema.Schema) string {
	var out strings.Builder

	emitSchemaDefinition(sch, &out)

	sch.Walk(schema.TypeDefVisitor{
		Scalar: func(_ schema.ScalarID, t schema.ScalarType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) || builtinScalarNames[t.Name] {
				return
			}
			emitScalar(t, &out)
		},
		Enum: func(_ schema.EnumID, t schema.EnumType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) {
				return
			}
			emitEnum(sch, t, &out)
		},
		InputObject: func(_ schema.InputObjectID, t schema.InputObjectType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) {
				return
			}
			emitInputObject(sch, t, &out)
		},
		Interface: func(_ schema.InterfaceID, t schema.InterfaceType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) {
				return
			}
			emitInterface(sch, t, &out)
		},
		Object: func(_ schema.ObjectID, t schema.ObjectType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) {
				return
			}
			emitObject(sch, t, &out)
		},
		Union: func(_ schema.UnionID, t schema.UnionType) {
			if t.Inaccessible || isFederationMetaName(t.Name) || isIntrospectionName(t.Name) {
				return
			}
			emitUnion(sch, t, &out)
		},
	})

	return strings.TrimSpace(out.String()) + "\n"
}

func emitSchemaDefinition(sch *schema.Schema, out *strings.Builder) {
	q, hasQ := sch.RootQuery()
	m, hasM := sch.RootMutation()
	s, hasS := sch.RootSubscription()

	needed := (hasQ && sch.Object(q).Name != "Query") ||
		(hasM && sch.Object(m).Name != "Mutation") ||
		(hasS && sch.Object(s).Name != "Subscription")
	if !needed {
		return
	}

	out.WriteString("schema {\n")
	if hasQ {
		fmt.Fprintf(out, "  query: %s\n", sch.Object(q).Name)
	}
	if hasM {
		fmt.Fprintf(out, "  mutation: %s\n", sch.Object(m).Name)
	}
	if hasS {
		fmt.Fprintf(out, "  subscription: %s\n", sch.Object(s).Name)
	}
	out.WriteString("}\n\n")
}

func emitScalar(t schema.ScalarType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	fmt.Fprintf(out, "scalar %s", t.Name)
	if t.SpecifiedBy != "" {
		fmt.Fprintf(out, " @specifiedBy(url: %s)", quoteDescription(t.SpecifiedBy))
	}
	out.WriteString("\n\n")
}

func emitEnum(sch *schema.Schema, t schema.EnumType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	fmt.Fprintf(out, "enum %s {\n", t.Name)
	for i := int32(0); i < t.Values.Count; i++ {
		v := sch.EnumValue(t.Values.Start + schema.EnumValueID(i))
		if v.Inaccessible {
			continue
		}
		writeDescription(out, "  ", v.Description)
		fmt.Fprintf(out, "  %s", v.Name)
		if v.Deprecated != nil {
			fmt.Fprintf(out, " @deprecated(reason: %s)", quoteDescription(*v.Deprecated))
		}
		out.WriteString("\n")
	}
	out.WriteString("}\n\n")
}

func emitInputObject(sch *schema.Schema, t schema.InputObjectType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	fmt.Fprintf(out, "input %s", t.Name)
	if t.IsOneOf {
		out.WriteString(" @oneOf")
	}
	out.WriteString(" {\n")
	for i := int32(0); i < t.InputFields.Count; i++ {
		f := sch.InputValue(t.InputFields.Start + schema.InputValueID(i))
		if f.Inaccessible {
			continue
		}
		writeDescription(out, "  ", f.Description)
		fmt.Fprintf(out, "  %s: %s", f.Name, typeRefString(f.Type))
		if f.HasDefault {
			fmt.Fprintf(out, " = %s", f.DefaultValue)
		}
		out.WriteString("\n")
	}
	out.WriteString("}\n\n")
}

func emitInterface(sch *schema.Schema, t schema.InterfaceType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	fmt.Fprintf(out, "interface %s%s {\n", t.Name, implementsClause(sch, t.InterfaceIDs))
	emitFields(sch, t.Fields, out)
	out.WriteString("}\n\n")
}

func emitObject(sch *schema.Schema, t schema.ObjectType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	fmt.Fprintf(out, "type %s%s {\n", t.Name, implementsClause(sch, t.InterfaceIDs))
	emitFields(sch, t.Fields, out)
	out.WriteString("}\n\n")
}

func implementsClause(sch *schema.Schema, ids []schema.InterfaceID) string {
	if len(ids) == 0 {
		return ""
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = sch.Interface(id).Name
	}
	sort.Strings(names)
	return " implements " + strings.Join(names, " & ")
}

func emitFields(sch *schema.Schema, r schema.FieldRange, out *strings.Builder) {
	for i := int32(0); i < r.Count; i++ {
		f := sch.Field(r.Start + schema.FieldDefID(i))
		if f.Inaccessible || isIntrospectionName(f.Name) || isFederationRootField(f.Name) {
			continue
		}
		writeDescription(out, "  ", f.Description)
		fmt.Fprintf(out, "  %s%s: %s", f.Name, argumentsClause(sch, f.Arguments), typeRefString(f.Type))
		if f.Deprecated != nil {
			fmt.Fprintf(out, " @deprecated(reason: %s)", quoteDescription(*f.Deprecated))
		}
		out.WriteString("\n")
	}
}

func argumentsClause(sch *schema.Schema, r schema.InputValueRange) string {
	if r.Count == 0 {
		return ""
	}
	parts := make([]string, 0, r.Count)
	for i := int32(0); i < r.Count; i++ {
		a := sch.InputValue(r.Start + schema.InputValueID(i))
		if a.Inaccessible {
			continue
		}
		part := fmt.Sprintf("%s: %s", a.Name, typeRefString(a.Type))
		if a.HasDefault {
			part += fmt.Sprintf(" = %s", a.DefaultValue)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func emitUnion(sch *schema.Schema, t schema.UnionType, out *strings.Builder) {
	writeDescription(out, "", t.Description)
	members := make(map[schema.ObjectID]bool, len(t.JoinMembers))
	for _, m := range t.JoinMembers {
		members[m.ObjectID] = true
	}
	names := make([]string, 0, len(members))
	for id := range members {
		names = append(names, sch.Object(id).Name)
	}
	sort.Strings(names)
	fmt.Fprintf(out, "union %s = %s\n\n", t.Name, strings.Join(names, " | "))
}

// typeRefString renders a TypeRef as SDL, walking its ListOf chain the way
// the teacher's getNamedType walks ast.Type (federation/planner/planner_v2.go).
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

func writeDescription(out *strings.Builder, indent, desc string) {
	if desc == "" {
		return
	}
	if strings.Contains(desc, "\n") {
		out.WriteString(indent + `"""` + "\n")
		for _, line := range strings.Split(desc, "\n") {
			out.WriteString(indent)
			out.WriteString(line)
			out.WriteString("\n")
		}
		out.WriteString(indent + `"""` + "\n")
		return
	}
	out.WriteString(indent)
	out.WriteString(quoteDescription(desc))
	out.WriteString("\n")
}

// quoteDescription renders s as a single-line GraphQL string literal,
// escaping the characters spec.md §4.7 names explicitly.
func quoteDescription(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
