package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tree, err := Normalize(calgaryDefinition())
	require.NoError(t, err)

	tests := []struct {
		name    string
		search  string
		keys    []string
		matched bool
	}{
		{name: "root", search: "City of Calgary", keys: []string{}, matched: true},
		{name: "top level", search: "Airdrie", keys: []string{"Airdrie"}, matched: true},
		{name: "folded area", search: "North", keys: []string{"North"}, matched: true},
		{name: "second level", search: "Airdrie East", keys: []string{"Airdrie", "Airdrie East"}, matched: true},
		{name: "community", search: "Coventry Hills", keys: []string{"North", "Coventry Hills"}, matched: true},
		{name: "deep community", search: "Bayside", keys: []string{"Airdrie", "Airdrie East", "Bayside"}, matched: true},
		{name: "unknown falls back to bare key", search: "Atlantis", keys: []string{"Atlantis"}, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tree.Resolve(tt.search)
			assert.Equal(t, tt.keys, p.Keys)
			assert.Equal(t, tt.matched, p.Matched)
		})
	}
}

func TestResolve_ShallowestMatchWins(t *testing.T) {
	// names are unique inside a Tree, so build the raw nodes directly
	root := &Node{Name: "Root", Kind: KindCity, Children: []*Node{
		{Name: "A", Kind: KindArea, Children: []*Node{{Name: "Dup", Kind: KindCommunity}}},
		{Name: "Dup", Kind: KindArea},
	}}

	p := Resolve(root, "Dup")
	assert.Equal(t, []string{"Dup"}, p.Keys)
}

func TestResolveStrict(t *testing.T) {
	tree, err := Normalize(calgaryDefinition())
	require.NoError(t, err)

	_, err = ResolveStrict(tree.Root, "Atlantis")
	assert.ErrorIs(t, err, ErrHierarchyMismatch)

	p, err := ResolveStrict(tree.Root, "Acadia")
	require.NoError(t, err)
	assert.Equal(t, []string{"South", "Acadia"}, p.Keys)
}

func TestWalkPaths(t *testing.T) {
	tree, err := Normalize(calgaryDefinition())
	require.NoError(t, err)

	paths := map[string][]string{}
	tree.Root.Walk(func(n *Node, path []string) {
		paths[n.Name] = path
	})

	assert.Empty(t, paths["City of Calgary"])
	assert.Equal(t, []string{"Airdrie", "Airdrie East", "Bayside"}, paths["Bayside"])
	// sibling paths must not share backing storage
	assert.Equal(t, []string{"North", "Beddington"}, paths["Beddington"])
	assert.Equal(t, []string{"North", "Coventry Hills"}, paths["Coventry Hills"])
}
