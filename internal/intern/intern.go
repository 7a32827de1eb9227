// Package intern provides dense-id arenas for strings and value-typed
// records, used by federation/schema to deduplicate names and field sets
// while composing a supergraph.
package intern

// StringID is a dense id into a Strings arena.
type StringID int32

// Strings deduplicates strings behind dense ids. The zero value is ready
// to use. Not safe for concurrent writers; composition is single-threaded
// (spec.md §5).
type Strings struct {
	values []string
	byVal  map[string]StringID
}

// NewStrings creates an empty interner with room for n distinct strings.
func NewStrings(n int) *Strings {
	return &Strings{
		values: make([]string, 0, n),
		byVal:  make(map[string]StringID, n),
	}
}

// Intern returns the id for s, assigning a new one if s hasn't been seen.
// The same input always yields the same id for the lifetime of the arena.
func (s *Strings) Intern(str string) StringID {
	if id, ok := s.byVal[str]; ok {
		return id
	}
	if s.byVal == nil {
		s.byVal = make(map[string]StringID)
	}
	id := StringID(len(s.values))
	s.values = append(s.values, str)
	s.byVal[str] = id
	return id
}

// Lookup returns the string previously interned under id. Panics if id is
// out of range, which indicates a bug in the caller (ids are never freed).
func (s *Strings) Lookup(id StringID) string {
	return s.values[id]
}

// Len reports how many distinct strings have been interned.
func (s *Strings) Len() int { return len(s.values) }

// Records deduplicates value-typed records of type T behind dense ids of
// type ID, keyed by a caller-supplied structural key K (comparable).
// Insertion is referentially transparent: GetOrInsert(k, build) called twice
// with an equal k returns the same id both times without calling build
// again.
type Records[K comparable, ID ~int32, T any] struct {
	values []T
	byKey  map[K]ID
}

// NewRecords creates an empty record arena.
func NewRecords[K comparable, ID ~int32, T any]() *Records[K, ID, T] {
	return &Records[K, ID, T]{byKey: make(map[K]ID)}
}

// GetOrInsert returns the id for key, building and storing a new record via
// build() only on first insertion.
func (r *Records[K, ID, T]) GetOrInsert(key K, build func() T) ID {
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := ID(len(r.values))
	r.values = append(r.values, build())
	r.byKey[key] = id
	return id
}

// Get returns the record stored at id.
func (r *Records[K, ID, T]) Get(id ID) T {
	return r.values[id]
}

// Len reports how many distinct records have been inserted.
func (r *Records[K, ID, T]) Len() int { return len(r.values) }

// All iterates records in insertion order.
func (r *Records[K, ID, T]) All() []T { return r.values }
