// Package location models per city location hierarchies as a single tagged
// tree and answers the structural questions the engine asks of it.
package location

import (
	"github.com/paulmach/orb"
)

// Kind tags the variant of a Node.
type Kind string

const (
	KindCity              Kind = "city"
	KindRegion            Kind = "region"
	KindArea              Kind = "area"
	KindZone              Kind = "zone"
	KindCommunity         Kind = "community"
	KindMunicipalDistrict Kind = "md"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCity, KindRegion, KindArea, KindZone, KindCommunity, KindMunicipalDistrict:
		return true
	}
	return false
}

// Node is one location of a city hierarchy. Measured nodes receive their
// statistics directly from ingestion and are never rolled up, even when
// they have children.
type Node struct {
	Name     string     `json:"name"`
	Kind     Kind       `json:"kind"`
	Measured bool       `json:"measured,omitempty"`
	Center   *orb.Point `json:"center,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Height is 0 for leaves and 1 + the height of the tallest child otherwise.
func (n *Node) Height() int {
	h := 0
	for _, c := range n.Children {
		if ch := c.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}

// IsRollupTarget reports whether the node's statistics are derived from its children.
func (n *Node) IsRollupTarget() bool {
	return !n.IsLeaf() && !n.Measured
}

// Walk visits n and its descendants depth first. path holds the names from
// the root's children down to the visited node; it is empty for the root.
func (n *Node) Walk(fn func(node *Node, path []string)) {
	n.walk(nil, fn, true)
}

func (n *Node) walk(path []string, fn func(*Node, []string), root bool) {
	if !root {
		path = append(path[:len(path):len(path)], n.Name)
	}
	fn(n, path)
	for _, c := range n.Children {
		c.walk(path, fn, false)
	}
}
