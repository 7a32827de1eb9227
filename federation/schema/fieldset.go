package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldSet is the recursive selection-set literal produced by parsing a
// `@key`/`@requires`/`@provides`/`@authorized` directive argument against a
// parent composite type (spec.md §3.1, §4.4).
type FieldSet struct {
	Items []FieldSetItem
}

// FieldSetItem is one selected field plus its (possibly empty) subselection.
type FieldSetItem struct {
	FieldID      FieldDefID
	SubSelection FieldSet
}

// Empty reports whether the field set selects nothing.
func (fs FieldSet) Empty() bool { return len(fs.Items) == 0 }

// sortedCopy returns fs with its items (recursively) sorted by FieldID, for
// canonical comparison and deterministic iteration order.
func (fs FieldSet) sortedCopy() FieldSet {
	items := make([]FieldSetItem, len(fs.Items))
	for i, it := range fs.Items {
		items[i] = FieldSetItem{FieldID: it.FieldID, SubSelection: it.SubSelection.sortedCopy()}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].FieldID < items[j].FieldID })
	return FieldSet{Items: items}
}

// Equal reports whether a and b select the same fields with the same
// subselections, irrespective of item order (spec.md §8 "union(A,A)==A").
func (a FieldSet) Equal(b FieldSet) bool {
	as, bs := a.sortedCopy(), b.sortedCopy()
	if len(as.Items) != len(bs.Items) {
		return false
	}
	for i := range as.Items {
		if as.Items[i].FieldID != bs.Items[i].FieldID {
			return false
		}
		if !as.Items[i].SubSelection.Equal(bs.Items[i].SubSelection) {
			return false
		}
	}
	return true
}

// UnionFieldSets merges a and b recursively, combining items that reference
// the same FieldID by unioning their subselections. The result is
// commutative and idempotent (spec.md §8).
func UnionFieldSets(a, b FieldSet) FieldSet {
	byField := make(map[FieldDefID]FieldSet)
	order := make([]FieldDefID, 0, len(a.Items)+len(b.Items))
	add := func(items []FieldSetItem) {
		for _, it := range items {
			existing, ok := byField[it.FieldID]
			if !ok {
				order = append(order, it.FieldID)
				byField[it.FieldID] = it.SubSelection
				continue
			}
			byField[it.FieldID] = UnionFieldSets(existing, it.SubSelection)
		}
	}
	add(a.Items)
	add(b.Items)

	result := FieldSet{Items: make([]FieldSetItem, 0, len(order))}
	for _, id := range order {
		result.Items = append(result.Items, FieldSetItem{FieldID: id, SubSelection: byField[id]})
	}
	return result.sortedCopy()
}

// canonicalKey renders fs as a stable string suitable for deduplicating
// equal field sets in an interned arena.
func (fs FieldSet) canonicalKey() string {
	var b strings.Builder
	fs.sortedCopy().writeKey(&b)
	return b.String()
}

func (fs FieldSet) writeKey(b *strings.Builder) {
	for i, it := range fs.Items {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", it.FieldID)
		if !it.SubSelection.Empty() {
			b.WriteByte('{')
			it.SubSelection.writeKey(b)
			b.WriteByte('}')
		}
	}
}

// SubSelectionAt returns the subselection rooted at fieldID within fs, if
// fs selects that field directly.
func (fs FieldSet) SubSelectionAt(fieldID FieldDefID) (FieldSet, bool) {
	for _, it := range fs.Items {
		if it.FieldID == fieldID {
			return it.SubSelection, true
		}
	}
	return FieldSet{}, false
}

// FieldLookup resolves a selection name to a field on a parent composite
// type. It is the seam between the field-set parser and whatever holds the
// in-progress or frozen schema state (the Builder during composition, the
// Schema afterwards).
type FieldLookup func(parent TypeDefID, name string) (field FieldDefID, outputType TypeRef, ok bool)

// ParseFieldSet parses a selection-set literal (e.g. `"upc"` or
// `"nested { id }"`) against parent, resolving every name via lookup.
// No aliases are permitted in federation field sets: a name must equal the
// field's response key. Selecting into a scalar or enum type is rejected.
func ParseFieldSet(parent TypeDefID, literal string, lookup FieldLookup) (FieldSet, error) {
	toks := tokenizeFieldSet(literal)
	p := &fieldSetParser{toks: toks, lookup: lookup}
	fs, err := p.parseSelectionSet(parent)
	if err != nil {
		return FieldSet{}, err
	}
	if p.pos != len(p.toks) {
		return FieldSet{}, fmt.Errorf("invalid field set %q: unexpected trailing token %q", literal, p.toks[p.pos])
	}
	return fs, nil
}

type fieldSetParser struct {
	toks   []string
	pos    int
	lookup FieldLookup
}

func (p *fieldSetParser) parseSelectionSet(parent TypeDefID) (FieldSet, error) {
	var items []FieldSetItem
	for p.pos < len(p.toks) && p.toks[p.pos] != "}" {
		name := p.toks[p.pos]
		p.pos++

		fieldID, outputType, ok := p.lookup(parent, name)
		if !ok {
			return FieldSet{}, fmt.Errorf("invalid field set: unknown field %q on parent type", name)
		}

		var sub FieldSet
		if p.pos < len(p.toks) && p.toks[p.pos] == "{" {
			if !outputType.IsComposite() {
				return FieldSet{}, fmt.Errorf("invalid field set: %q does not return a composite type and cannot have a subselection", name)
			}
			p.pos++ // consume "{"
			var err error
			sub, err = p.parseSelectionSet(leafTypeDef(outputType))
			if err != nil {
				return FieldSet{}, err
			}
			if p.pos >= len(p.toks) || p.toks[p.pos] != "}" {
				return FieldSet{}, fmt.Errorf("invalid field set: unterminated subselection on %q", name)
			}
			p.pos++ // consume "}"
		} else if outputType.IsComposite() {
			return FieldSet{}, fmt.Errorf("invalid field set: %q returns a composite type and requires a subselection", name)
		}

		items = append(items, FieldSetItem{FieldID: fieldID, SubSelection: sub})
	}
	return FieldSet{Items: items}, nil
}

func leafTypeDef(t TypeRef) TypeDefID {
	leaf := &t
	for leaf.ListOf != nil {
		leaf = leaf.ListOf
	}
	return leaf.Named
}

// tokenizeFieldSet splits a field-set literal into names and braces, e.g.
// `"nested { id }"` -> ["nested", "{", "id", "}"].
func tokenizeFieldSet(literal string) []string {
	literal = strings.Trim(literal, "\"")
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range literal {
		switch {
		case r == '{' || r == '}':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
