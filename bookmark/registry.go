package bookmark

import (
	"fmt"
	"maps"
	"slices"
)

// Registry maps durable bookmark ids to highlights rendered for them and
// back. Every highlight belongs to exactly one bookmark. Registry is owned
// by a single chapter session and is not safe for concurrent use.
type Registry struct {
	marks  map[MarkID][]string
	owners map[string]MarkID
}

func NewRegistry() *Registry {
	return &Registry{
		marks:  make(map[MarkID][]string),
		owners: make(map[string]MarkID),
	}
}

// PushInto appends highlight to the list of the bookmark, creating the list
// when necessary. Highlight may be registered only once.
func (r *Registry) PushInto(mark MarkID, id string) error {
	if owner, ok := r.owners[id]; ok {
		return &RegistryConsistencyError{HighlightID: id, MarkID: mark,
			Reason: fmt.Sprintf("highlight is already registered for mark %d", owner)}
	}
	r.marks[mark] = append(r.marks[mark], id)
	r.owners[id] = mark
	return nil
}

// Get returns highlights of the bookmark in render order.
func (r *Registry) Get(mark MarkID) []string {
	return slices.Clone(r.marks[mark])
}

func (r *Registry) Has(mark MarkID) bool {
	_, ok := r.marks[mark]
	return ok
}

// Contain reports if highlight is registered for any bookmark.
func (r *Registry) Contain(id string) bool {
	_, ok := r.owners[id]
	return ok
}

// GetKey returns bookmark owning the highlight.
func (r *Registry) GetKey(id string) (MarkID, bool) {
	mark, ok := r.owners[id]
	return mark, ok
}

// Delete forgets bookmark and all its highlights.
func (r *Registry) Delete(mark MarkID) {
	for _, id := range r.marks[mark] {
		delete(r.owners, id)
	}
	delete(r.marks, mark)
}

func (r *Registry) Clear() {
	clear(r.marks)
	clear(r.owners)
}

// Marks returns registered bookmarks in ascending order.
func (r *Registry) Marks() []MarkID {
	return slices.Sorted(maps.Keys(r.marks))
}

// Len returns number of registered highlights.
func (r *Registry) Len() int {
	return len(r.owners)
}

// Check verifies that forward and reverse indexes agree.
func (r *Registry) Check() error {
	var total int
	for mark, ids := range r.marks {
		for _, id := range ids {
			if owner, ok := r.owners[id]; !ok || owner != mark {
				return &RegistryConsistencyError{HighlightID: id, MarkID: mark, Reason: "reverse index disagrees"}
			}
		}
		total += len(ids)
	}
	if total != len(r.owners) {
		return &RegistryConsistencyError{Reason: fmt.Sprintf("%d highlights listed, %d indexed", total, len(r.owners))}
	}
	return nil
}
