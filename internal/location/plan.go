package location

import "sort"

// Level is a set of rollup targets whose children are all of lower height,
// so the whole level can be computed concurrently once the levels before it
// have been written.
type Level struct {
	Height int
	Nodes  []*Node
}

// RollupLevels groups every rollup target by height, lowest first.
func (t *Tree) RollupLevels() []Level {
	byHeight := make(map[int][]*Node)
	t.Root.Walk(func(n *Node, _ []string) {
		if n.IsRollupTarget() {
			h := n.Height()
			byHeight[h] = append(byHeight[h], n)
		}
	})

	heights := make([]int, 0, len(byHeight))
	for h := range byHeight {
		heights = append(heights, h)
	}
	sort.Ints(heights)

	levels := make([]Level, 0, len(heights))
	for _, h := range heights {
		levels = append(levels, Level{Height: h, Nodes: byHeight[h]})
	}
	return levels
}

// RollupTargets returns the rollup targets in bottom-up order.
func (t *Tree) RollupTargets() []*Node {
	var nodes []*Node
	for _, l := range t.RollupLevels() {
		nodes = append(nodes, l.Nodes...)
	}
	return nodes
}
