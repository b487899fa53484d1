package location

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrHierarchyMismatch is returned when a name is not part of a city's tree.
	ErrHierarchyMismatch = errors.New("location not found in hierarchy")
	// ErrDuplicateLocation is returned when a tree uses a name twice.
	ErrDuplicateLocation = errors.New("duplicate location name")
)

// Tree is the immutable hierarchy of one city.
type Tree struct {
	City   string
	Root   *Node
	index  map[string]*Node
	parent map[string]string
}

// NewTree indexes root and checks that every name is unique.
func NewTree(city string, root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("city %s: empty hierarchy", city)
	}
	t := &Tree{
		City:   city,
		Root:   root,
		index:  make(map[string]*Node),
		parent: make(map[string]string),
	}

	var err error
	var visit func(n *Node, parent string)
	visit = func(n *Node, parent string) {
		if err != nil {
			return
		}
		if n.Name == "" {
			err = fmt.Errorf("city %s: node under %q has no name", city, parent)
			return
		}
		if !n.Kind.Valid() {
			err = fmt.Errorf("city %s: node %q has unknown kind %q", city, n.Name, n.Kind)
			return
		}
		if _, ok := t.index[n.Name]; ok {
			err = fmt.Errorf("city %s: %w: %s", city, ErrDuplicateLocation, n.Name)
			return
		}
		t.index[n.Name] = n
		if parent != "" {
			t.parent[n.Name] = parent
		}
		for _, c := range n.Children {
			visit(c, n.Name)
		}
	}
	visit(root, "")
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Find returns the node with the given name.
func (t *Tree) Find(name string) (*Node, bool) {
	n, ok := t.index[name]
	return n, ok
}

// Contains reports whether name is part of the tree.
func (t *Tree) Contains(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Parent returns the name of the node's parent, or "" for the root.
func (t *Tree) Parent(name string) string {
	return t.parent[name]
}

// IsRoot reports whether name is the root location.
func (t *Tree) IsRoot(name string) bool {
	return t.Root.Name == name
}

// Names returns every location name, sorted.
func (t *Tree) Names() []string {
	names := make([]string, 0, len(t.index))
	for name := range t.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.index)
}
