package location

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calgaryDefinition() Definition {
	return Definition{
		City:  "calgary",
		Shape: ShapeRegionAreaCommunity,
		Root:  "City of Calgary",
		Regions: []RegionDef{
			{
				Name: "City of Calgary",
				Areas: []AreaDef{
					{Name: "North", Communities: []string{"Beddington", "Coventry Hills"}},
					{Name: "South", Communities: []string{"Acadia"}},
				},
			},
			{
				Name: "Airdrie",
				Areas: []AreaDef{
					{Name: "Airdrie East", Communities: []string{"Bayside"}},
				},
			},
		},
		Measured: []string{"City of Calgary", "Airdrie"},
	}
}

func edmontonDefinition() Definition {
	return Definition{
		City:  "edmonton",
		Shape: ShapeCityZoneCommunity,
		Root:  "Edmonton",
		Communities: []CommunityDef{
			{Name: "Oliver", City: "Edmonton", Area: "Central", Zone: 12},
			{Name: "Downtown", City: "Edmonton", Area: "Central", Zone: 12},
			{Name: "Garneau", City: "Edmonton", Area: "Central", Zone: 15},
			{Name: "Windermere", City: "Edmonton", Area: "South West", Zone: 56},
			{Name: "River Valley", City: "Edmonton"},
			{Name: "Lacombe Park", City: "St. Albert"},
		},
		Cities:             []string{"Edmonton", "St. Albert"},
		MunicipalDistricts: []string{"Parkland County"},
		Measured:           []string{"Edmonton", "St. Albert"},
	}
}

func TestNormalize_RegionAreaCommunity(t *testing.T) {
	tree, err := Normalize(calgaryDefinition())
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, "City of Calgary", root.Name)
	assert.Equal(t, KindCity, root.Kind)
	assert.True(t, root.Measured)
	assert.Equal(t, []string{"North", "South", "Airdrie"}, childNames(root))

	airdrie, ok := tree.Find("Airdrie")
	require.True(t, ok)
	assert.Equal(t, KindRegion, airdrie.Kind)
	assert.Equal(t, "City of Calgary", tree.Parent("Airdrie"))
	assert.Equal(t, "North", tree.Parent("Beddington"))
	assert.Equal(t, 9, tree.Len())
}

func childNames(n *Node) []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

func TestNormalize_CityZoneCommunity(t *testing.T) {
	tree, err := Normalize(edmontonDefinition())
	require.NoError(t, err)

	assert.Equal(t, []string{"Central", "South West", "River Valley", "St. Albert", "Parkland County"}, childNames(tree.Root))

	central, ok := tree.Find("Central")
	require.True(t, ok)
	assert.Equal(t, []string{"Zone 12", "Zone 15"}, childNames(central))

	zone, ok := tree.Find("Zone 12")
	require.True(t, ok)
	assert.Equal(t, KindZone, zone.Kind)
	assert.Equal(t, []string{"Oliver", "Downtown"}, childNames(zone))

	md, ok := tree.Find("Parkland County")
	require.True(t, ok)
	assert.Equal(t, KindMunicipalDistrict, md.Kind)
	assert.True(t, md.IsLeaf())

	stAlbert, _ := tree.Find("St. Albert")
	assert.True(t, stAlbert.Measured)
	assert.Equal(t, []string{"Lacombe Park"}, childNames(stAlbert))
}

func TestNormalize_Nested(t *testing.T) {
	def := Definition{
		City:  "winnipeg",
		Shape: ShapeNested,
		Root:  "Winnipeg",
		Tree: &Node{
			Children: []*Node{
				{Name: "Downtown", Kind: KindArea, Children: []*Node{{Name: "Exchange District", Kind: KindCommunity}}},
				{Name: "Rural Municipality", Kind: KindArea, Measured: true},
			},
		},
		Centers: map[string]orb.Point{"Downtown": {-97.14, 49.89}},
	}

	tree, err := Normalize(def)
	require.NoError(t, err)
	assert.Equal(t, "Winnipeg", tree.Root.Name)
	assert.Equal(t, KindCity, tree.Root.Kind)

	downtown, _ := tree.Find("Downtown")
	require.NotNil(t, downtown.Center)
	assert.Equal(t, -97.14, downtown.Center.Lon())
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{name: "missing root", def: Definition{City: "x", Shape: ShapeNested}},
		{name: "unknown shape", def: Definition{City: "x", Root: "X", Shape: "flat"}},
		{name: "nested without tree", def: Definition{City: "x", Root: "X", Shape: ShapeNested}},
		{
			name: "community of unknown city",
			def: Definition{
				City: "x", Root: "X", Shape: ShapeCityZoneCommunity,
				Communities: []CommunityDef{{Name: "A", City: "Nowhere"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestNewTree_DuplicateNames(t *testing.T) {
	root := &Node{Name: "Root", Kind: KindCity, Children: []*Node{
		{Name: "A", Kind: KindArea, Children: []*Node{{Name: "Same", Kind: KindCommunity}}},
		{Name: "B", Kind: KindArea, Children: []*Node{{Name: "Same", Kind: KindCommunity}}},
	}}

	_, err := NewTree("x", root)
	assert.ErrorIs(t, err, ErrDuplicateLocation)
}

func TestNewTree_UnknownKind(t *testing.T) {
	_, err := NewTree("x", &Node{Name: "Root", Kind: "planet"})
	assert.Error(t, err)
}

func TestRollupLevels(t *testing.T) {
	tree, err := Normalize(edmontonDefinition())
	require.NoError(t, err)

	levels := tree.RollupLevels()
	require.Len(t, levels, 2)

	assert.Equal(t, 1, levels[0].Height)
	var first []string
	for _, n := range levels[0].Nodes {
		first = append(first, n.Name)
	}
	assert.ElementsMatch(t, []string{"Zone 12", "Zone 15", "Zone 56"}, first)

	assert.Equal(t, 2, levels[1].Height)
	var second []string
	for _, n := range levels[1].Nodes {
		second = append(second, n.Name)
	}
	assert.ElementsMatch(t, []string{"Central", "South West"}, second)

	// the measured root and satellite city are never rolled up
	for _, n := range tree.RollupTargets() {
		assert.False(t, n.Measured, n.Name)
	}
}
