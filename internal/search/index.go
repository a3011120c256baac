package search

import (
	"iter"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// StatusFilter narrows search results by record status. The zero value
// matches every record.
type StatusFilter struct {
	status string
	set    bool
}

func All() StatusFilter {
	return StatusFilter{}
}

// Equals matches records whose status equals status, ignoring case.
func Equals(status string) StatusFilter {
	return StatusFilter{status: status, set: true}
}

// ParseStatusFilter maps the query-string form ("", "all", or a status name)
// to a filter.
func ParseStatusFilter(raw string) StatusFilter {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return All()
	}
	return Equals(raw)
}

func (f StatusFilter) Match(status string) bool {
	if !f.set {
		return true
	}
	return strings.EqualFold(f.status, status)
}

func (f StatusFilter) String() string {
	if !f.set {
		return "all"
	}
	return f.status
}

// Accessors tell the index how to read a record.
type Accessors[T any] struct {
	Key    func(T) string
	Fields func(T) []string
	Status func(T) string
}

type entry[T any] struct {
	record T
	folded []string
	status string
}

// Index is an in-memory lookup over records of one kind. Results come back in
// insertion order; updating a record keeps its original position.
type Index[T any] struct {
	acc Accessors[T]

	mu      sync.RWMutex
	entries []*entry[T]
	pos     map[string]int
}

func New[T any](acc Accessors[T]) *Index[T] {
	if acc.Key == nil || acc.Fields == nil {
		panic("search: key and fields accessors required")
	}
	return &Index[T]{acc: acc, pos: make(map[string]int)}
}

func fold(c cases.Caser, fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		out = append(out, c.String(f))
	}
	return out
}

func (ix *Index[T]) build(rec T) *entry[T] {
	e := &entry[T]{
		record: rec,
		folded: fold(cases.Fold(), ix.acc.Fields(rec)),
	}
	if ix.acc.Status != nil {
		e.status = ix.acc.Status(rec)
	}
	return e
}

// Add inserts rec at the end. It reports false, leaving the index unchanged,
// when a record with the same key is already present.
func (ix *Index[T]) Add(rec T) bool {
	e := ix.build(rec)
	key := ix.acc.Key(rec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.pos[key]; ok {
		return false
	}
	ix.pos[key] = len(ix.entries)
	ix.entries = append(ix.entries, e)
	return true
}

// Upsert adds rec or replaces the record with the same key in place.
func (ix *Index[T]) Upsert(rec T) {
	e := ix.build(rec)
	key := ix.acc.Key(rec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if i, ok := ix.pos[key]; ok {
		// copy so iterators holding the old slice never see a torn write
		next := make([]*entry[T], len(ix.entries))
		copy(next, ix.entries)
		next[i] = e
		ix.entries = next
		return
	}
	ix.pos[key] = len(ix.entries)
	ix.entries = append(ix.entries, e)
}

// Replace swaps the whole content for recs, in order.
func (ix *Index[T]) Replace(recs []T) {
	entries := make([]*entry[T], 0, len(recs))
	pos := make(map[string]int, len(recs))
	for _, r := range recs {
		key := ix.acc.Key(r)
		if i, ok := pos[key]; ok {
			entries[i] = ix.build(r)
			continue
		}
		pos[key] = len(entries)
		entries = append(entries, ix.build(r))
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.pos = pos
	ix.mu.Unlock()
}

func (ix *Index[T]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search yields the records where term is a case-folded substring of any
// indexed field and whose status passes filter. An empty term matches all.
// The sequence reads a snapshot taken when iteration starts.
func (ix *Index[T]) Search(term string, filter StatusFilter) iter.Seq[T] {
	needle := cases.Fold().String(strings.TrimSpace(term))

	return func(yield func(T) bool) {
		ix.mu.RLock()
		snapshot := ix.entries
		ix.mu.RUnlock()

		for _, e := range snapshot {
			if !matches(e.folded, needle) || !filter.Match(e.status) {
				continue
			}
			if !yield(e.record) {
				return
			}
		}
	}
}

func matches(fields []string, needle string) bool {
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(f, needle) {
			return true
		}
	}
	return false
}
