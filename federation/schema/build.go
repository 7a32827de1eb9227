package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphfed/supergraph-planner/internal/intern"
	"github.com/n9te9/graphql-parser/ast"
)

var builtinScalarNames = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

// Builder performs the two-pass directive ingestion described in
// spec.md §4.3, turning a parsed supergraph SDL document into a frozen
// Schema. A Builder is single-use: call Build once per supergraph SDL.
type Builder struct {
	strings   *intern.Strings
	fieldSets *intern.Records[string, FieldSetID, FieldSet]

	subgraphs      []SubgraphRecord
	subgraphByName map[string]SubgraphID

	objects      []ObjectType
	objectByName map[string]ObjectID

	interfaces      []InterfaceType
	interfaceByName map[string]InterfaceID

	unions      []UnionType
	unionByName map[string]UnionID

	enums      []EnumType
	enumByName map[string]EnumID

	scalars      []ScalarType
	scalarByName map[string]ScalarID

	inputObjects      []InputObjectType
	inputObjectByName map[string]InputObjectID

	fields       []FieldRecord
	fieldsByName map[EntityID]map[string]FieldDefID

	inputValues []InputValueRecord
	enumValues  []EnumValueRecord
	resolvers   []ResolverDef
	directives  []DirectiveRecord

	// entityResolvers[entity][subgraph] holds resolvers able to reach that
	// entity in that subgraph (spec.md §3.1 invariant on entity_resolvers).
	entityResolvers map[EntityID]map[SubgraphID][]ResolverDefID

	// overrides[fieldID] lists subgraphs removed from the field's
	// resolvable set by `@join__field(override:)` on some other subgraph.
	overrides map[FieldDefID][]SubgraphID

	byName map[string]TypeDefID

	// explicitJoinType tracks which entities carried at least one
	// @join__type directive, distinguishing "no join directives at all"
	// (spec.md §4.3 pass 2 step 6, universal default) from "join__type
	// present but this particular field had none" (step 4, parent-driven
	// resolvability).
	explicitJoinType map[EntityID]bool

	rootQuery, rootMutation, rootSubscription *ObjectID

	errs []*BuildError
}

// NewBuilder creates an empty Builder ready to ingest one supergraph SDL
// document.
func NewBuilder() *Builder {
	return &Builder{
		strings:           intern.NewStrings(64),
		fieldSets:         intern.NewRecords[string, FieldSetID, FieldSet](),
		subgraphByName:    map[string]SubgraphID{},
		objectByName:      map[string]ObjectID{},
		interfaceByName:   map[string]InterfaceID{},
		unionByName:       map[string]UnionID{},
		enumByName:        map[string]EnumID{},
		scalarByName:      map[string]ScalarID{},
		inputObjectByName: map[string]InputObjectID{},
		fieldsByName:      map[EntityID]map[string]FieldDefID{},
		entityResolvers:   map[EntityID]map[SubgraphID][]ResolverDefID{},
		overrides:         map[FieldDefID][]SubgraphID{},
		byName:            map[string]TypeDefID{},
	}
}

// Build ingests doc and returns a frozen Schema, or the accumulated
// BuildErrors if composition failed. Composition is transactional: either
// the full schema builds or no schema is returned (spec.md §7).
func (b *Builder) Build(doc *ast.Document) (*Schema, error) {
	b.declareSubgraphs(doc)
	b.declareTypes(doc)
	b.declareFields(doc)

	if len(b.errs) > 0 {
		return nil, BuildErrors(b.errs)
	}

	b.pass1Types(doc)
	b.attachRootResolvers()
	b.pass2Fields(doc)
	b.finalize()

	if len(b.errs) > 0 {
		return nil, BuildErrors(b.errs)
	}

	return b.freeze(), nil
}

func (b *Builder) fail(err *BuildError) { b.errs = append(b.errs, err) }

// ---------------------------------------------------------------------
// Subgraph discovery: the `join__Graph` enum, each value annotated with
// `@join__graph(name: "...", url: "...")`, enumerates participating
// subgraphs (the Apollo Federation / join-spec convention this spec's
// directive family follows).
// ---------------------------------------------------------------------

func (b *Builder) declareSubgraphs(doc *ast.Document) {
	for _, def := range doc.Definitions {
		enumDef, ok := def.(*ast.EnumTypeDefinition)
		if !ok || enumDef.Name.String() != "join__Graph" {
			continue
		}
		for _, v := range enumDef.Values {
			d := directiveByName(v.Directives, "join__graph")
			if d == nil {
				continue
			}
			name, _ := argString(d, "name")
			url, _ := argString(d, "url")
			id := b.addSubgraph(name, url)
			// @join__type/@join__field(graph:) name the enum value, not the
			// @join__graph name, so both resolve to the same subgraph.
			b.subgraphByName[v.Name.String()] = id
		}
	}
}

func (b *Builder) addSubgraph(name, url string) SubgraphID {
	if id, ok := b.subgraphByName[name]; ok {
		return id
	}
	id := SubgraphID(len(b.subgraphs))
	b.subgraphs = append(b.subgraphs, SubgraphRecord{
		NameID:            b.strings.Intern(name),
		Name:              name,
		IsGraphQLEndpoint: true,
		URL:               url,
	})
	b.subgraphByName[name] = id
	return id
}

func (b *Builder) subgraphID(name string, loc Location) (SubgraphID, bool) {
	id, ok := b.subgraphByName[name]
	if !ok {
		b.fail(newSubgraphNotFoundError(loc, name))
	}
	return id, ok
}

// ---------------------------------------------------------------------
// Declaration: reserve a dense id and name binding for every type and
// field before any directive is interpreted, so field-set literals and
// @join__field(type:) can resolve sibling names regardless of SDL order.
// ---------------------------------------------------------------------

func (b *Builder) declareTypes(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			name := d.Name.String()
			if name == "join__Graph" {
				continue
			}
			id := ObjectID(len(b.objects))
			b.objects = append(b.objects, ObjectType{NameID: b.strings.Intern(name), Name: name, Description: descriptionOf(d.Description)})
			b.objectByName[name] = id
			b.byName[name] = TypeDefID{Kind: TypeDefObject, Object: id}
			switch name {
			case "Query":
				b.rootQuery = &id
			case "Mutation":
				b.rootMutation = &id
			case "Subscription":
				b.rootSubscription = &id
			}
		case *ast.InterfaceTypeDefinition:
			name := d.Name.String()
			id := InterfaceID(len(b.interfaces))
			b.interfaces = append(b.interfaces, InterfaceType{NameID: b.strings.Intern(name), Name: name, Description: descriptionOf(d.Description)})
			b.interfaceByName[name] = id
			b.byName[name] = TypeDefID{Kind: TypeDefInterface, Interface: id}
		case *ast.UnionTypeDefinition:
			name := d.Name.String()
			id := UnionID(len(b.unions))
			b.unions = append(b.unions, UnionType{NameID: b.strings.Intern(name), Name: name, Description: descriptionOf(d.Description)})
			b.unionByName[name] = id
			b.byName[name] = TypeDefID{Kind: TypeDefUnion, Union: id}
		case *ast.EnumTypeDefinition:
			name := d.Name.String()
			if name == "join__Graph" {
				continue
			}
			id := EnumID(len(b.enums))
			b.enums = append(b.enums, EnumType{NameID: b.strings.Intern(name), Name: name, Description: descriptionOf(d.Description)})
			b.enumByName[name] = id
			b.byName[name] = TypeDefID{Kind: TypeDefEnum, Enum: id}
		case *ast.ScalarTypeDefinition:
			id := b.declareScalar(d.Name.String())
			b.scalars[id].Description = descriptionOf(d.Description)
		case *ast.InputObjectTypeDefinition:
			name := d.Name.String()
			id := InputObjectID(len(b.inputObjects))
			b.inputObjects = append(b.inputObjects, InputObjectType{NameID: b.strings.Intern(name), Name: name, Description: descriptionOf(d.Description)})
			b.inputObjectByName[name] = id
			b.byName[name] = TypeDefID{Kind: TypeDefInputObject, InputObject: id}
		}
	}
}

// descriptionOf returns the raw text of an optional leading SDL description
// string, or "" if the definition carried none. StringValue.String() renders
// the literal as it appeared in source (quotes included, single or triple),
// the same convention argString relies on for directive arguments, so the
// surrounding quote run is stripped the same way.
func descriptionOf(d *ast.StringValue) string {
	if d == nil {
		return ""
	}
	return strings.Trim(d.String(), "\"")
}

func (b *Builder) declareScalar(name string) ScalarID {
	if id, ok := b.scalarByName[name]; ok {
		return id
	}
	id := ScalarID(len(b.scalars))
	b.scalars = append(b.scalars, ScalarType{NameID: b.strings.Intern(name), Name: name})
	b.scalarByName[name] = id
	b.byName[name] = TypeDefID{Kind: TypeDefScalar, Scalar: id}
	return id
}

func (b *Builder) declareFields(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			objID := b.objectByName[d.Name.String()]
			b.declareObjectOrInterfaceFields(entityFromObject(objID), d.Fields, func(r FieldRange) {
				b.objects[objID].Fields = r
			})
			for _, it := range d.Interfaces {
				if ifaceID, ok := b.interfaceByName[namedTypeName(it)]; ok {
					b.objects[objID].InterfaceIDs = append(b.objects[objID].InterfaceIDs, ifaceID)
				}
			}
		case *ast.InterfaceTypeDefinition:
			ifaceID := b.interfaceByName[d.Name.String()]
			b.declareObjectOrInterfaceFields(entityFromInterface(ifaceID), d.Fields, func(r FieldRange) {
				b.interfaces[ifaceID].Fields = r
			})
			for _, it := range d.Interfaces {
				if parentID, ok := b.interfaceByName[namedTypeName(it)]; ok {
					b.interfaces[ifaceID].InterfaceIDs = append(b.interfaces[ifaceID].InterfaceIDs, parentID)
				}
			}
		case *ast.InputObjectTypeDefinition:
			inputID := b.inputObjectByName[d.Name.String()]
			start := InputValueID(len(b.inputValues))
			for _, f := range d.Fields {
				rec := InputValueRecord{
					NameID:      b.strings.Intern(f.Name.String()),
					Name:        f.Name.String(),
					Description: descriptionOf(f.Description),
					Type:        b.resolveTypeRef(f.Type),
				}
				if f.DefaultValue != nil {
					rec.HasDefault = true
					rec.DefaultValue = f.DefaultValue.String()
				}
				b.inputValues = append(b.inputValues, rec)
			}
			b.inputObjects[inputID].InputFields = InputValueRange{Start: start, Count: int32(len(d.Fields))}
		case *ast.EnumTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			enumID := b.enumByName[d.Name.String()]
			start := EnumValueID(len(b.enumValues))
			for _, v := range d.Values {
				b.enumValues = append(b.enumValues, EnumValueRecord{
					NameID:      b.strings.Intern(v.Name.String()),
					Name:        v.Name.String(),
					Description: descriptionOf(v.Description),
				})
			}
			b.enums[enumID].Values = EnumValueRange{Start: start, Count: int32(len(d.Values))}
		}
	}
}

func (b *Builder) declareObjectOrInterfaceFields(parent EntityID, fields []*ast.FieldDefinition, setRange func(FieldRange)) {
	start := FieldDefID(len(b.fields))
	byName := map[string]FieldDefID{}
	for _, f := range fields {
		name := f.Name.String()
		fieldID := FieldDefID(len(b.fields))

		argStart := InputValueID(len(b.inputValues))
		for _, a := range f.Arguments {
			rec := InputValueRecord{
				NameID:      b.strings.Intern(a.Name.String()),
				Name:        a.Name.String(),
				Description: descriptionOf(a.Description),
				Type:        b.resolveTypeRef(a.Type),
			}
			if a.DefaultValue != nil {
				rec.HasDefault = true
				rec.DefaultValue = a.DefaultValue.String()
			}
			b.inputValues = append(b.inputValues, rec)
		}

		b.fields = append(b.fields, FieldRecord{
			NameID:       b.strings.Intern(name),
			Name:         name,
			Description:  descriptionOf(f.Description),
			ParentEntity: parent,
			Type:         b.resolveTypeRef(f.Type),
			Arguments:    InputValueRange{Start: argStart, Count: int32(len(f.Arguments))},
		})
		byName[name] = fieldID
	}
	b.fieldsByName[parent] = byName
	setRange(FieldRange{Start: start, Count: int32(len(fields))})
}

func (b *Builder) resolveTypeRef(t ast.Type) TypeRef {
	switch n := t.(type) {
	case *ast.NonNullType:
		inner := b.resolveTypeRef(n.Type)
		inner.NonNull = true
		return inner
	case *ast.ListType:
		inner := b.resolveTypeRef(n.Type)
		return TypeRef{ListOf: &inner}
	default:
		name := namedTypeName(t)
		id, ok := b.byName[name]
		if !ok && builtinScalarNames[name] {
			id = TypeDefID{Kind: TypeDefScalar, Scalar: b.declareScalar(name)}
		}
		return TypeRef{Named: id, NamedStr: name}
	}
}

// fieldLookupForBuild adapts the builder's in-progress field tables to the
// FieldLookup seam ParseFieldSet expects (spec.md §4.4).
func (b *Builder) fieldLookupForBuild() FieldLookup {
	return func(parent TypeDefID, name string) (FieldDefID, TypeRef, bool) {
		entity, ok := entityFromTypeDef(parent)
		if !ok {
			return 0, TypeRef{}, false
		}
		byName, ok := b.fieldsByName[entity]
		if !ok {
			return 0, TypeRef{}, false
		}
		id, ok := byName[name]
		if !ok {
			return 0, TypeRef{}, false
		}
		return id, b.fields[id].Type, true
	}
}

func entityFromTypeDef(t TypeDefID) (EntityID, bool) {
	switch t.Kind {
	case TypeDefObject:
		return entityFromObject(t.Object), true
	case TypeDefInterface:
		return entityFromInterface(t.Interface), true
	default:
		return EntityID{}, false
	}
}

// ---------------------------------------------------------------------
// Pass 1 (types): spec.md §4.3.
// ---------------------------------------------------------------------

func (b *Builder) pass1Types(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			b.pass1Object(b.objectByName[d.Name.String()], d.Directives)
		case *ast.ObjectTypeExtension:
			if id, ok := b.objectByName[d.Name.String()]; ok {
				b.pass1Object(id, d.Directives)
			}
		case *ast.InterfaceTypeDefinition:
			b.pass1Interface(b.interfaceByName[d.Name.String()], d.Directives)
		case *ast.UnionTypeDefinition:
			b.pass1Union(b.unionByName[d.Name.String()], d.Directives)
		case *ast.EnumTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			b.pass1Generic(d.Name.String(), d.Directives, TypeDefEnum)
		case *ast.ScalarTypeDefinition:
			b.pass1Generic(d.Name.String(), d.Directives, TypeDefScalar)
		case *ast.InputObjectTypeDefinition:
			b.pass1Generic(d.Name.String(), d.Directives, TypeDefInputObject)
		}
	}

	// Step 6: universal default for types that carried no @join__type at all.
	for i := range b.objects {
		if len(b.objects[i].ExistsIn) == 0 {
			b.objects[i].ExistsIn = b.allSubgraphs()
		}
	}
	for i := range b.interfaces {
		if len(b.interfaces[i].ExistsIn) == 0 {
			b.interfaces[i].ExistsIn = b.allSubgraphs()
		}
	}
	for i := range b.unions {
		if len(b.unions[i].ExistsIn) == 0 {
			b.unions[i].ExistsIn = b.allSubgraphs()
		}
	}
	for i := range b.enums {
		if len(b.enums[i].ExistsIn) == 0 {
			b.enums[i].ExistsIn = b.allSubgraphs()
		}
	}
	for i := range b.scalars {
		if len(b.scalars[i].ExistsIn) == 0 {
			b.scalars[i].ExistsIn = b.allSubgraphs()
		}
	}
	for i := range b.inputObjects {
		if len(b.inputObjects[i].ExistsIn) == 0 {
			b.inputObjects[i].ExistsIn = b.allSubgraphs()
		}
	}
}

func (b *Builder) allSubgraphs() []SubgraphID {
	all := make([]SubgraphID, len(b.subgraphs))
	for i := range b.subgraphs {
		all[i] = SubgraphID(i)
	}
	return all
}

func (b *Builder) pass1Object(id ObjectID, directives []*ast.Directive) {
	entity := entityFromObject(id)
	if hasDirective(directives, "inaccessible") {
		b.objects[id].Inaccessible = true
	}
	for _, d := range allDirectivesByName(directives, "join__type") {
		b.ingestJoinType(entity, &b.objects[id].ExistsIn, d)
	}
	for _, d := range allDirectivesByName(directives, "join__implements") {
		graphName, _ := argString(d, "graph")
		ifaceName, _ := argString(d, "interface")
		sgID, ok := b.subgraphID(graphName, Location{})
		ifaceID, ifaceOK := b.interfaceByName[ifaceName]
		if ok && ifaceOK {
			b.objects[id].JoinImplements = append(b.objects[id].JoinImplements, JoinImplementRecord{SubgraphID: sgID, InterfaceID: ifaceID})
		}
	}
	sort.Slice(b.objects[id].JoinImplements, func(i, j int) bool {
		a, c := b.objects[id].JoinImplements[i], b.objects[id].JoinImplements[j]
		if a.SubgraphID != c.SubgraphID {
			return a.SubgraphID < c.SubgraphID
		}
		return a.InterfaceID < c.InterfaceID
	})
}

func (b *Builder) pass1Interface(id InterfaceID, directives []*ast.Directive) {
	entity := entityFromInterface(id)
	if hasDirective(directives, "inaccessible") {
		b.interfaces[id].Inaccessible = true
	}
	for _, d := range allDirectivesByName(directives, "join__type") {
		b.ingestJoinType(entity, &b.interfaces[id].ExistsIn, d)
		if argBool(d, "isInterfaceObject", false) {
			if graphName, ok := argString(d, "graph"); ok {
				if sgID, ok := b.subgraphID(graphName, Location{}); ok {
					b.interfaces[id].IsInterfaceObjectIn = append(b.interfaces[id].IsInterfaceObjectIn, sgID)
				}
			}
		}
	}
}

func (b *Builder) pass1Union(id UnionID, directives []*ast.Directive) {
	if hasDirective(directives, "inaccessible") {
		b.unions[id].Inaccessible = true
	}
	for _, d := range allDirectivesByName(directives, "join__type") {
		b.ingestExistsOnly(&b.unions[id].ExistsIn, d)
	}
	for _, d := range allDirectivesByName(directives, "join__unionMember") {
		graphName, _ := argString(d, "graph")
		memberName, _ := argString(d, "member")
		sgID, ok := b.subgraphID(graphName, Location{})
		memberID, memberOK := b.objectByName[memberName]
		if ok && memberOK {
			b.unions[id].JoinMembers = append(b.unions[id].JoinMembers, JoinMemberRecord{SubgraphID: sgID, ObjectID: memberID})
		}
	}
	sort.Slice(b.unions[id].JoinMembers, func(i, j int) bool {
		a, c := b.unions[id].JoinMembers[i], b.unions[id].JoinMembers[j]
		if a.SubgraphID != c.SubgraphID {
			return a.SubgraphID < c.SubgraphID
		}
		return a.ObjectID < c.ObjectID
	})
}

func (b *Builder) pass1Generic(name string, directives []*ast.Directive, kind TypeDefKind) {
	if hasDirective(directives, "inaccessible") {
		b.setInaccessible(name, kind)
	}
	for _, d := range allDirectivesByName(directives, "join__type") {
		b.ingestExistsOnlyNamed(name, kind, d)
	}
	switch kind {
	case TypeDefScalar:
		if d := directiveByName(directives, "specifiedBy"); d != nil {
			if url, ok := argString(d, "url"); ok {
				b.scalars[b.scalarByName[name]].SpecifiedBy = url
			}
		}
	case TypeDefInputObject:
		if hasDirective(directives, "oneOf") {
			b.inputObjects[b.inputObjectByName[name]].IsOneOf = true
		}
	}
}

func (b *Builder) setInaccessible(name string, kind TypeDefKind) {
	switch kind {
	case TypeDefEnum:
		b.enums[b.enumByName[name]].Inaccessible = true
	case TypeDefScalar:
		b.scalars[b.scalarByName[name]].Inaccessible = true
	case TypeDefInputObject:
		b.inputObjects[b.inputObjectByName[name]].Inaccessible = true
	}
}

func (b *Builder) ingestExistsOnlyNamed(name string, kind TypeDefKind, d *ast.Directive) {
	switch kind {
	case TypeDefEnum:
		id := b.enumByName[name]
		b.ingestExistsOnly(&b.enums[id].ExistsIn, d)
	case TypeDefScalar:
		id := b.scalarByName[name]
		b.ingestExistsOnly(&b.scalars[id].ExistsIn, d)
	case TypeDefInputObject:
		id := b.inputObjectByName[name]
		b.ingestExistsOnly(&b.inputObjects[id].ExistsIn, d)
	}
}

// ingestExistsOnly handles `@join__type(graph)` for kinds that cannot be
// federation entities (unions, enums, scalars, input objects): only
// membership is recorded, never a key or entity resolver.
func (b *Builder) ingestExistsOnly(existsIn *[]SubgraphID, d *ast.Directive) {
	graphName, ok := argString(d, "graph")
	if !ok {
		return
	}
	sgID, ok := b.subgraphID(graphName, Location{})
	if !ok {
		return
	}
	addSortedUnique(existsIn, sgID)
}

// ingestJoinType handles the full `@join__type(graph, key?, resolvable?,
// extension?, isInterfaceObject?)` directive on an entity-capable type
// (object or interface), including entity-resolver registration
// (spec.md §4.3 pass 1 step 3).
func (b *Builder) ingestJoinType(entity EntityID, existsIn *[]SubgraphID, d *ast.Directive) {
	if b.explicitJoinType == nil {
		b.explicitJoinType = map[EntityID]bool{}
	}
	b.explicitJoinType[entity] = true

	graphName, ok := argString(d, "graph")
	if !ok {
		return
	}
	sgID, ok := b.subgraphID(graphName, Location{})
	if !ok {
		return
	}
	addSortedUnique(existsIn, sgID)

	keyLiteral, hasKey := argString(d, "key")
	if !hasKey || strings.TrimSpace(keyLiteral) == "" {
		return
	}
	if !b.subgraphs[sgID].IsGraphQLEndpoint {
		return
	}

	typeDefID := entityTypeDefID(entity)
	keySet, err := ParseFieldSet(typeDefID, keyLiteral, b.fieldLookupForBuild())
	if err != nil {
		b.fail(newFieldSetError(Location{}, entityDebugName(b, entity), "@key", err))
		return
	}

	// Regardless of resolvability, every field named in the key must exist
	// in this subgraph (spec.md §4.3 pass 1 step 3, last bullet).
	b.forceKeyFieldsResolvable(sgID, keySet)

	resolvable := argBool(d, "resolvable", true)
	if !resolvable {
		return
	}

	fsID := b.fieldSets.GetOrInsert(keySet.canonicalKey(), func() FieldSet { return keySet })
	resolver := ResolverDef{
		Kind:            ResolverGraphqlFederationEntity,
		EndpointID:      sgID,
		KeyFieldsRecord: fsID,
		HasKeyFields:    true,
		EntityID:        entity,
	}
	resolverID := ResolverDefID(len(b.resolvers))
	b.resolvers = append(b.resolvers, resolver)

	if b.entityResolvers[entity] == nil {
		b.entityResolvers[entity] = map[SubgraphID][]ResolverDefID{}
	}
	b.entityResolvers[entity][sgID] = append(b.entityResolvers[entity][sgID], resolverID)
}

// forceKeyFieldsResolvable injects sgID into the ExistsIn set of every
// field transitively mentioned by a key, even for an unresolvable key.
func (b *Builder) forceKeyFieldsResolvable(sgID SubgraphID, fs FieldSet) {
	for _, item := range fs.Items {
		addSortedUnique(&b.fields[item.FieldID].ExistsIn, sgID)
		b.forceKeyFieldsResolvable(sgID, item.SubSelection)
	}
}

func entityTypeDefID(e EntityID) TypeDefID {
	if e.Kind == EntityObject {
		return TypeDefID{Kind: TypeDefObject, Object: e.Object}
	}
	return TypeDefID{Kind: TypeDefInterface, Interface: e.Interface}
}

func entityDebugName(b *Builder, e EntityID) string {
	if e.Kind == EntityObject {
		return b.objects[e.Object].Name
	}
	return b.interfaces[e.Interface].Name
}

// attachRootResolvers implements spec.md §4.3's "after Pass 1, for each
// root operation object, append one GraphqlRootField resolver per
// GraphQL-endpoint subgraph in which the root object exists."
func (b *Builder) attachRootResolvers() {
	for _, obj := range []*ObjectID{b.rootQuery, b.rootMutation, b.rootSubscription} {
		if obj == nil {
			continue
		}
		entity := entityFromObject(*obj)
		for _, sgID := range b.objects[*obj].ExistsIn {
			if !b.subgraphs[sgID].IsGraphQLEndpoint {
				continue
			}
			resolverID := ResolverDefID(len(b.resolvers))
			b.resolvers = append(b.resolvers, ResolverDef{Kind: ResolverGraphqlRootField, EndpointID: sgID, EntityID: entity})
			if b.entityResolvers[entity] == nil {
				b.entityResolvers[entity] = map[SubgraphID][]ResolverDefID{}
			}
			b.entityResolvers[entity][sgID] = append(b.entityResolvers[entity][sgID], resolverID)
		}
	}
}

// ---------------------------------------------------------------------
// Pass 2 (nested): fields, input values, enum values. spec.md §4.3.
// ---------------------------------------------------------------------

func (b *Builder) pass2Fields(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			objID := b.objectByName[d.Name.String()]
			b.pass2FieldList(entityFromObject(objID), b.objects[objID], d.Fields)
		case *ast.ObjectTypeExtension:
			if objID, ok := b.objectByName[d.Name.String()]; ok {
				b.pass2FieldList(entityFromObject(objID), b.objects[objID], d.Fields)
			}
		case *ast.InterfaceTypeDefinition:
			ifaceID := b.interfaceByName[d.Name.String()]
			b.pass2FieldList(entityFromInterface(ifaceID), b.interfaces[ifaceID], d.Fields)
		case *ast.InputObjectTypeDefinition:
			inputID := b.inputObjectByName[d.Name.String()]
			for i, iv := range b.inputObjects[inputID].InputFields.ids() {
				if i < len(d.Fields) {
					b.pass2Inaccessible(&b.inputValues[iv].Inaccessible, d.Fields[i].Directives)
				}
			}
		case *ast.EnumTypeDefinition:
			if d.Name.String() == "join__Graph" {
				continue
			}
			enumID := b.enumByName[d.Name.String()]
			for i, ev := range b.enums[enumID].Values.ids() {
				if i < len(d.Values) {
					directives := d.Values[i].Directives
					b.pass2Inaccessible(&b.enumValues[ev].Inaccessible, directives)
					if dd := directiveByName(directives, "deprecated"); dd != nil {
						reason, _ := argString(dd, "reason")
						b.enumValues[ev].Deprecated = &reason
					}
				}
			}
		}
	}
}

func (b *Builder) pass2Inaccessible(flag *bool, directives []*ast.Directive) {
	if hasDirective(directives, "inaccessible") {
		*flag = true
	}
}

type fieldRangeHolder interface{ fieldRange() FieldRange }

func (o ObjectType) fieldRange() FieldRange    { return o.Fields }
func (i InterfaceType) fieldRange() FieldRange { return i.Fields }

func (b *Builder) pass2FieldList(entity EntityID, parent fieldRangeHolder, astFields []*ast.FieldDefinition) {
	ids := parent.fieldRange().ids()
	for i, fieldID := range ids {
		if i >= len(astFields) {
			break
		}
		b.pass2Field(entity, fieldID, astFields[i].Directives)
	}
}

func (b *Builder) pass2Field(entity EntityID, fieldID FieldDefID, directives []*ast.Directive) {
	f := &b.fields[fieldID]

	if hasDirective(directives, "inaccessible") {
		f.Inaccessible = true
	}
	if hasDirective(directives, "shareable") {
		f.IsShareable = true
	}
	if d := directiveByName(directives, "deprecated"); d != nil {
		reason, _ := argString(d, "reason")
		f.Deprecated = &reason
	}
	if d := directiveByName(directives, "listSize"); d != nil {
		b.ingestListSize(f, d)
	}
	if d := directiveByName(directives, "authorized"); d != nil {
		b.ingestAuthorized(entity, f, d)
	}

	joinFields := allDirectivesByName(directives, "join__field")
	var overridden []SubgraphID

	for _, jf := range joinFields {
		f.HasJoinField = true
		external := argBool(jf, "external", false)
		if external {
			f.IsExternal = true
		}

		if graphName, ok := argString(jf, "graph"); ok {
			sgID, ok := b.subgraphID(graphName, Location{})
			if ok && !external {
				addSortedUnique(&f.ExistsIn, sgID)
				if reqLit, ok := argString(jf, "requires"); ok && strings.TrimSpace(reqLit) != "" {
					b.ingestFieldSetArg(f, &f.RequiresRecords, sgID, entityTypeDefID(entity), reqLit, "@requires")
				}
				if provLit, ok := argString(jf, "provides"); ok && strings.TrimSpace(provLit) != "" {
					if !f.Type.IsComposite() {
						b.fail(newValidationError(Location{}, "@provides on %s: output type is not composite", f.Name))
					} else {
						b.ingestFieldSetArg(f, &f.ProvidesRecords, sgID, leafTypeDef(f.Type), provLit, "@provides")
					}
				}
			}
			if typeLit, ok := argString(jf, "type"); ok && typeLit != "" {
				f.SubgraphTypeRecords = append(f.SubgraphTypeRecords, SubgraphTypeRecord{SubgraphID: sgID, Type: TypeRef{NamedStr: typeLit}})
			}
		}

		if fromName, ok := argString(jf, "override"); ok && fromName != "" {
			if fromID, ok := b.subgraphID(fromName, Location{}); ok {
				overridden = append(overridden, fromID)
			}
		}
	}

	// Step 4: no @join__field at all -> consult parent's @join__type(resolvable) entries.
	if len(joinFields) == 0 {
		for _, sgID := range b.resolvableParentSubgraphs(entity) {
			addSortedUnique(&f.ExistsIn, sgID)
		}
	}

	// Step 5: remove overridden subgraphs from the resolvable set.
	for _, sgID := range overridden {
		removeFromSorted(&f.ExistsIn, sgID)
	}
	b.overrides[fieldID] = overridden

	// Step 6: default rule — neither field nor parent carried any join
	// directive at all -> universal.
	if len(joinFields) == 0 && !b.parentHasJoinType(entity) {
		f.ExistsIn = b.allSubgraphs()
	}

	// Step 7: attach entity resolvers, skipping a federation-entity
	// resolver whose key already includes this field.
	for _, sgID := range f.ExistsIn {
		for _, resolverID := range b.entityResolvers[entity][sgID] {
			r := b.resolvers[resolverID]
			if r.Kind == ResolverGraphqlFederationEntity && r.HasKeyFields {
				keySet := b.fieldSets.Get(r.KeyFieldsRecord)
				if keyMentionsField(keySet, fieldID) {
					continue
				}
			}
			f.ResolverIDs = append(f.ResolverIDs, resolverID)
		}
	}

	// Step 8: field-resolver extension directives register a new resolver
	// and add their subgraph to the resolvable set.
	for _, name := range []string{"extension__directive", "sourceDirective"} {
		if d := directiveByName(directives, name); d != nil {
			b.ingestFieldResolverExtension(entity, f, d)
		}
	}

	if d := directiveByName(directives, "lookup"); d != nil {
		b.ingestLookup(f, fieldID, d)
	}
}

// ingestLookup registers a `@lookup` root field (spec.md §6.3 end-to-end
// scenario 1, "nested key lookup, batch argument match") as a
// ResolverSelectionSetExtension resolver on whichever entity its output
// type names, keyed by whichever `@key` the field's argument shape
// structurally matches. A lookup field's arguments stand in for a key: an
// argument named like the key's top-level field, recursing into a matching
// input-object field for every subselection, is accepted regardless of
// which entity keys also exist but don't match (spec.md's "batch argument
// match" example: `nested: [NestedInput!]!` matches `@key(fields: "nested
// { id }")` because `NestedInput.id` lines up with the key's `id`).
func (b *Builder) ingestLookup(f *FieldRecord, fieldID FieldDefID, d *ast.Directive) {
	leaf := leafTypeDef(f.Type)
	var entity EntityID
	switch leaf.Kind {
	case TypeDefObject:
		entity = entityFromObject(leaf.Object)
	case TypeDefInterface:
		entity = entityFromInterface(leaf.Interface)
	default:
		b.fail(newValidationError(Location{}, "@lookup on %s: output type is not an entity", f.Name))
		return
	}

	dirID := DirectiveID(len(b.directives))
	b.directives = append(b.directives, DirectiveRecord{NameID: b.strings.Intern("lookup"), Name: "lookup"})

	var matchedKey FieldSetID
	found := false
	bySubgraphMap := b.entityResolvers[entity]
	subgraphIDs := make([]SubgraphID, 0, len(bySubgraphMap))
	for sgID := range bySubgraphMap {
		subgraphIDs = append(subgraphIDs, sgID)
	}
	sort.Slice(subgraphIDs, func(i, j int) bool { return subgraphIDs[i] < subgraphIDs[j] })

outer:
	for _, sgID := range subgraphIDs {
		for _, resolverID := range bySubgraphMap[sgID] {
			r := b.resolvers[resolverID]
			if r.Kind != ResolverGraphqlFederationEntity || !r.HasKeyFields {
				continue
			}
			keySet := b.fieldSets.Get(r.KeyFieldsRecord)
			if b.lookupArgsMatchFieldSet(f.Arguments, keySet) {
				matchedKey = r.KeyFieldsRecord
				found = true
				break outer
			}
		}
	}

	if !found {
		b.fail(newLookupNoMatchingKeyError(Location{}, f.Name))
		return
	}

	resolverID := ResolverDefID(len(b.resolvers))
	b.resolvers = append(b.resolvers, ResolverDef{
		Kind:            ResolverSelectionSetExtension,
		EndpointID:      b.lookupEndpoint(f),
		EntityID:        entity,
		KeyFieldsRecord: matchedKey,
		HasKeyFields:    true,
		DirectiveID:     dirID,
	})
	f.ResolverIDs = append(f.ResolverIDs, resolverID)
}

// lookupEndpoint picks the subgraph a @lookup resolver fetches through: the
// subgraph the lookup field itself is declared resolvable in (set earlier in
// pass2Field from its own `@join__field`/parent `@join__type`), falling back
// to the entity's first federation-entity endpoint when the field carried no
// join directives of its own.
func (b *Builder) lookupEndpoint(f *FieldRecord) SubgraphID {
	if len(f.ExistsIn) > 0 {
		return f.ExistsIn[0]
	}
	var first SubgraphID
	found := false
	if entity, ok := entityFromTypeDef(leafTypeDef(f.Type)); ok {
		for sgID, resolverIDs := range b.entityResolvers[entity] {
			for _, rid := range resolverIDs {
				if b.resolvers[rid].Kind == ResolverGraphqlFederationEntity && (!found || sgID < first) {
					first, found = sgID, true
				}
			}
		}
	}
	return first
}

// lookupArgsMatchFieldSet checks whether args (a field or input object's
// flat argument/field list) structurally matches fs: every item in fs must
// have a same-named argument, recursing into the argument's (possibly
// list/non-null-wrapped) input-object type when the item carries a
// subselection.
func (b *Builder) lookupArgsMatchFieldSet(args InputValueRange, fs FieldSet) bool {
	for _, item := range fs.Items {
		name := b.fields[item.FieldID].Name
		var matched *InputValueRecord
		for _, ivID := range args.ids() {
			if b.inputValues[ivID].Name == name {
				matched = &b.inputValues[ivID]
				break
			}
		}
		if matched == nil {
			return false
		}
		if len(item.SubSelection.Items) == 0 {
			continue
		}
		leaf := leafTypeDef(matched.Type)
		if leaf.Kind != TypeDefInputObject {
			return false
		}
		if !b.lookupArgsMatchFieldSet(b.inputObjects[leaf.InputObject].InputFields, item.SubSelection) {
			return false
		}
	}
	return true
}

func keyMentionsField(fs FieldSet, fieldID FieldDefID) bool {
	for _, item := range fs.Items {
		if item.FieldID == fieldID {
			return true
		}
		if keyMentionsField(item.SubSelection, fieldID) {
			return true
		}
	}
	return false
}

func (b *Builder) ingestFieldSetArg(f *FieldRecord, into *[]SubgraphFieldSetRecord, sgID SubgraphID, parent TypeDefID, literal, directiveName string) {
	fs, err := ParseFieldSet(parent, literal, b.fieldLookupForBuild())
	if err != nil {
		b.fail(newFieldSetError(Location{}, f.Name, directiveName, err))
		return
	}
	fsID := b.fieldSets.GetOrInsert(fs.canonicalKey(), func() FieldSet { return fs })
	*into = append(*into, SubgraphFieldSetRecord{SubgraphID: sgID, FieldSet: fsID})
}

func (b *Builder) ingestAuthorized(entity EntityID, f *FieldRecord, d *ast.Directive) {
	if lit, ok := argString(d, "fields"); ok && strings.TrimSpace(lit) != "" {
		fs, err := ParseFieldSet(entityTypeDefID(entity), lit, b.fieldLookupForBuild())
		if err != nil {
			b.fail(newFieldSetError(Location{}, f.Name, "@authorized(fields:)", err))
		} else {
			id := b.fieldSets.GetOrInsert(fs.canonicalKey(), func() FieldSet { return fs })
			f.AuthorizedFields = &id
		}
	}
	if lit, ok := argString(d, "node"); ok && strings.TrimSpace(lit) != "" {
		if !f.Type.IsComposite() {
			b.fail(newValidationError(Location{}, "@authorized(node:) on %s: output type is not composite", f.Name))
			return
		}
		fs, err := ParseFieldSet(leafTypeDef(f.Type), lit, b.fieldLookupForBuild())
		if err != nil {
			b.fail(newFieldSetError(Location{}, f.Name, "@authorized(node:)", err))
		} else {
			id := b.fieldSets.GetOrInsert(fs.canonicalKey(), func() FieldSet { return fs })
			f.AuthorizedNodeFields = &id
		}
	}
}

func (b *Builder) ingestListSize(f *FieldRecord, d *ast.Directive) {
	if f.Type.ListOf == nil {
		b.fail(newValidationError(Location{}, "@listSize on %s: field does not return a list", f.Name))
		return
	}
	f.IsListSized = true
	for _, a := range d.Arguments {
		if a.Name.String() != "sizedFields" {
			continue
		}
		lv, ok := a.Value.(*ast.ListValue)
		if !ok {
			continue
		}
		for _, v := range lv.Values {
			f.SizedFields = append(f.SizedFields, strings.Trim(v.String(), "\""))
		}
	}
	if len(f.SizedFields) > 0 && !f.Type.IsComposite() {
		b.fail(newValidationError(Location{}, "@listSize(sizedFields:) on %s: output type is not composite", f.Name))
	}
}

func (b *Builder) ingestFieldResolverExtension(entity EntityID, f *FieldRecord, d *ast.Directive) {
	name := d.Name
	dirID := DirectiveID(len(b.directives))
	args := map[string]string{}
	for _, a := range d.Arguments {
		args[a.Name.String()] = a.Value.String()
	}
	b.directives = append(b.directives, DirectiveRecord{NameID: b.strings.Intern(name), Name: name, Arguments: args})

	resolverID := ResolverDefID(len(b.resolvers))
	b.resolvers = append(b.resolvers, ResolverDef{Kind: ResolverFieldExtension, DirectiveID: dirID, EntityID: entity})
	f.ResolverIDs = append(f.ResolverIDs, resolverID)

	if graphName, ok := args["graph"]; ok {
		if sgID, ok := b.subgraphID(graphName, Location{}); ok {
			addSortedUnique(&f.ExistsIn, sgID)
		}
	}
}

func (b *Builder) resolvableParentSubgraphs(entity EntityID) []SubgraphID {
	if entity.Kind == EntityObject {
		return b.objects[entity.Object].ExistsIn
	}
	return b.interfaces[entity.Interface].ExistsIn
}

func (b *Builder) parentHasJoinType(entity EntityID) bool {
	return b.explicitJoinType[entity]
}

// ---------------------------------------------------------------------
// Finalization: spec.md §4.3 "Finalization" + §4.2 freeze-time invariants.
// ---------------------------------------------------------------------

func (b *Builder) finalize() {
	b.propagateInaccessibility()
	b.computeNotFullyImplemented()
}

func (b *Builder) propagateInaccessibility() {
	// Fix-point over a single linear pass is sufficient here because the
	// only inaccessibility-carrying dependency edge is field/argument ->
	// declared type, and types never reference themselves through an
	// inaccessible field (that would make the type unreachable, not
	// cyclic); one pass over fields catches every case.
	isTypeInaccessible := func(t TypeRef) bool {
		leaf := leafTypeDef(t)
		switch leaf.Kind {
		case TypeDefObject:
			return b.objects[leaf.Object].Inaccessible
		case TypeDefInterface:
			return b.interfaces[leaf.Interface].Inaccessible
		case TypeDefUnion:
			return b.unions[leaf.Union].Inaccessible
		case TypeDefEnum:
			return b.enums[leaf.Enum].Inaccessible
		case TypeDefScalar:
			return b.scalars[leaf.Scalar].Inaccessible
		case TypeDefInputObject:
			return b.inputObjects[leaf.InputObject].Inaccessible
		}
		return false
	}
	for i := range b.fields {
		if isTypeInaccessible(b.fields[i].Type) {
			b.fields[i].Inaccessible = true
		}
	}
	for i := range b.inputValues {
		if isTypeInaccessible(b.inputValues[i].Type) {
			b.inputValues[i].Inaccessible = true
		}
	}
}

func (b *Builder) computeNotFullyImplemented() {
	for ifaceID, iface := range b.interfaces {
		implementors := b.possibleTypes(InterfaceID(ifaceID))
		b.interfaces[ifaceID].PossibleTypeIDs = implementors
		for _, sgID := range iface.ExistsIn {
			fullyImplemented := false
			for _, objID := range implementors {
				if containsSubgraph(b.objects[objID].ExistsIn, sgID) && objectImplementsInSubgraph(b.objects[objID], InterfaceID(ifaceID), sgID) {
					fullyImplemented = true
					break
				}
			}
			if !fullyImplemented && len(implementors) > 0 {
				b.interfaces[ifaceID].NotFullyImplementedIn = append(b.interfaces[ifaceID].NotFullyImplementedIn, sgID)
			}
		}
		sort.Slice(b.interfaces[ifaceID].NotFullyImplementedIn, func(i, j int) bool {
			return b.interfaces[ifaceID].NotFullyImplementedIn[i] < b.interfaces[ifaceID].NotFullyImplementedIn[j]
		})
	}

	for unionID, u := range b.unions {
		for _, sgID := range u.ExistsIn {
			fullyImplemented := false
			for _, m := range u.JoinMembers {
				if m.SubgraphID == sgID {
					fullyImplemented = true
					break
				}
			}
			if !fullyImplemented && len(u.JoinMembers) > 0 {
				b.unions[unionID].NotFullyImplementedIn = append(b.unions[unionID].NotFullyImplementedIn, sgID)
			}
		}
		sort.Slice(b.unions[unionID].NotFullyImplementedIn, func(i, j int) bool {
			return b.unions[unionID].NotFullyImplementedIn[i] < b.unions[unionID].NotFullyImplementedIn[j]
		})
	}
}

func (b *Builder) possibleTypes(ifaceID InterfaceID) []ObjectID {
	var out []ObjectID
	for objID, o := range b.objects {
		for _, i := range o.InterfaceIDs {
			if i == ifaceID {
				out = append(out, ObjectID(objID))
				break
			}
		}
	}
	return out
}

func objectImplementsInSubgraph(o ObjectType, ifaceID InterfaceID, sgID SubgraphID) bool {
	for _, r := range o.JoinImplements {
		if r.InterfaceID == ifaceID && r.SubgraphID == sgID {
			return true
		}
	}
	return false
}

func (b *Builder) freeze() *Schema {
	return &Schema{
		strings:           b.strings,
		fieldSets:         b.fieldSets,
		subgraphs:         b.subgraphs,
		subgraphByName:    b.subgraphByName,
		objects:           b.objects,
		objectByName:      b.objectByName,
		interfaces:        b.interfaces,
		interfaceByName:   b.interfaceByName,
		unions:            b.unions,
		unionByName:       b.unionByName,
		enums:             b.enums,
		enumByName:        b.enumByName,
		scalars:           b.scalars,
		scalarByName:      b.scalarByName,
		inputObjects:      b.inputObjects,
		inputObjectByName: b.inputObjectByName,
		fields:            b.fields,
		fieldsByName:      b.fieldsByName,
		inputValues:       b.inputValues,
		enumValues:        b.enumValues,
		resolvers:         b.resolvers,
		directives:        b.directives,
		entityResolvers:   b.entityResolvers,
		byName:            b.byName,
		rootQuery:         b.rootQuery,
		rootMutation:      b.rootMutation,
		rootSubscription:  b.rootSubscription,
	}
}

// ---------------------------------------------------------------------
// small AST helpers
// ---------------------------------------------------------------------

func namedTypeName(t ast.Type) string {
	switch n := t.(type) {
	case *ast.NamedType:
		return n.Name.String()
	case *ast.ListType:
		return namedTypeName(n.Type)
	case *ast.NonNullType:
		return namedTypeName(n.Type)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func hasDirective(directives []*ast.Directive, name string) bool {
	return directiveByName(directives, name) != nil
}

func directiveByName(directives []*ast.Directive, name string) *ast.Directive {
	for _, d := range directives {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func allDirectivesByName(directives []*ast.Directive, name string) []*ast.Directive {
	var out []*ast.Directive
	for _, d := range directives {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

func argString(d *ast.Directive, name string) (string, bool) {
	for _, a := range d.Arguments {
		if a.Name.String() == name {
			return strings.Trim(a.Value.String(), "\""), true
		}
	}
	return "", false
}

func argBool(d *ast.Directive, name string, def bool) bool {
	for _, a := range d.Arguments {
		if a.Name.String() == name {
			return a.Value.String() == "true"
		}
	}
	return def
}

func addSortedUnique(s *[]SubgraphID, id SubgraphID) {
	for _, existing := range *s {
		if existing == id {
			return
		}
	}
	*s = append(*s, id)
	sort.Slice(*s, func(i, j int) bool { return (*s)[i] < (*s)[j] })
}

func removeFromSorted(s *[]SubgraphID, id SubgraphID) {
	out := (*s)[:0]
	for _, existing := range *s {
		if existing != id {
			out = append(out, existing)
		}
	}
	*s = out
}

func containsSubgraph(s []SubgraphID, id SubgraphID) bool {
	for _, existing := range s {
		if existing == id {
			return true
		}
	}
	return false
}
