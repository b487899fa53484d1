package location

import "fmt"

// Path locates a name inside a tree. Keys run from the root's child down to
// the location itself; the root resolves to an empty Keys. When Matched is
// false the name was not found and Keys is the bare name.
type Path struct {
	Keys    []string `json:"keys"`
	Matched bool     `json:"matched"`
}

// Resolve searches the tree one depth at a time, starting with the root's
// children, and returns the path of the first node named name. Names that
// are not in the tree fall back to a single key directly under the root.
func Resolve(root *Node, name string) Path {
	if root == nil {
		return Path{Keys: []string{name}}
	}
	if root.Name == name {
		return Path{Keys: []string{}, Matched: true}
	}

	type entry struct {
		node *Node
		path []string
	}
	level := make([]entry, 0, len(root.Children))
	for _, c := range root.Children {
		level = append(level, entry{node: c, path: []string{c.Name}})
	}

	for len(level) > 0 {
		for _, e := range level {
			if e.node.Name == name {
				return Path{Keys: e.path, Matched: true}
			}
		}
		var next []entry
		for _, e := range level {
			for _, c := range e.node.Children {
				p := make([]string, len(e.path)+1)
				copy(p, e.path)
				p[len(e.path)] = c.Name
				next = append(next, entry{node: c, path: p})
			}
		}
		level = next
	}

	return Path{Keys: []string{name}}
}

// ResolveStrict is Resolve that reports unmatched names as ErrHierarchyMismatch.
func ResolveStrict(root *Node, name string) (Path, error) {
	p := Resolve(root, name)
	if !p.Matched {
		return p, fmt.Errorf("%w: %s", ErrHierarchyMismatch, name)
	}
	return p, nil
}

// Resolve resolves name in the tree.
func (t *Tree) Resolve(name string) Path {
	return Resolve(t.Root, name)
}
