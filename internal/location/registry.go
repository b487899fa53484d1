package location

import "sort"

// Registry holds the trees of every loaded city. It is built once at
// startup and read concurrently afterwards.
type Registry struct {
	trees map[string]*Tree
}

func NewRegistry(trees ...*Tree) *Registry {
	r := &Registry{trees: make(map[string]*Tree, len(trees))}
	for _, t := range trees {
		r.trees[t.City] = t
	}
	return r
}

// Tree returns the hierarchy of a city.
func (r *Registry) Tree(city string) (*Tree, bool) {
	t, ok := r.trees[city]
	return t, ok
}

// Cities returns the ids of the loaded cities, sorted.
func (r *Registry) Cities() []string {
	ids := make([]string, 0, len(r.trees))
	for id := range r.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
