package location

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Definition shapes accepted by Normalize.
const (
	ShapeRegionAreaCommunity = "region-area-community"
	ShapeCityZoneCommunity   = "city-zone-community"
	ShapeNested              = "nested"
)

// Definition is the on-disk description of a city hierarchy. Which fields
// are read depends on Shape.
type Definition struct {
	City   string     `json:"city"`
	Shape  string     `json:"shape"`
	Root   string     `json:"root"`
	Center *orb.Point `json:"center,omitempty"`

	// Names whose statistics are ingested directly.
	Measured []string `json:"measured,omitempty"`
	// Centers of individual locations, [lng, lat].
	Centers map[string]orb.Point `json:"centers,omitempty"`

	// region-area-community
	Regions []RegionDef `json:"regions,omitempty"`

	// city-zone-community
	Communities        []CommunityDef `json:"communities,omitempty"`
	Cities             []string       `json:"cities,omitempty"`
	MunicipalDistricts []string       `json:"mds,omitempty"`

	// nested
	Tree *Node `json:"tree,omitempty"`
}

type RegionDef struct {
	Name  string    `json:"name"`
	Areas []AreaDef `json:"areas"`
}

type AreaDef struct {
	Name        string   `json:"name"`
	Communities []string `json:"communities"`
}

// CommunityDef is one row of a flat community listing. Zone 0 means the
// community is not zoned.
type CommunityDef struct {
	Name string `json:"name"`
	City string `json:"city"`
	Area string `json:"area,omitempty"`
	Zone int    `json:"zone,omitempty"`
}

// ZoneName is the location name of a numbered zone.
func ZoneName(zone int) string {
	return fmt.Sprintf("Zone %d", zone)
}

// Normalize turns a definition into a validated Tree.
func Normalize(def Definition) (*Tree, error) {
	if def.Root == "" {
		return nil, fmt.Errorf("city %s: missing root name", def.City)
	}

	var root *Node
	var err error
	switch def.Shape {
	case ShapeRegionAreaCommunity:
		root = normalizeRegions(def)
	case ShapeCityZoneCommunity:
		root, err = normalizeZones(def)
	case ShapeNested:
		if def.Tree == nil {
			return nil, fmt.Errorf("city %s: nested shape without tree", def.City)
		}
		root = def.Tree
		if root.Name == "" {
			root.Name = def.Root
		}
		if root.Kind == "" {
			root.Kind = KindCity
		}
	default:
		return nil, fmt.Errorf("city %s: unknown hierarchy shape %q", def.City, def.Shape)
	}
	if err != nil {
		return nil, err
	}

	if def.Center != nil && root.Center == nil {
		c := *def.Center
		root.Center = &c
	}
	applyAttributes(root, def)

	return NewTree(def.City, root)
}

// normalizeRegions builds root -> region -> area -> community. A region
// named like the root is folded into it.
func normalizeRegions(def Definition) *Node {
	root := &Node{Name: def.Root, Kind: KindCity}
	for _, r := range def.Regions {
		areas := make([]*Node, 0, len(r.Areas))
		for _, a := range r.Areas {
			area := &Node{Name: a.Name, Kind: KindArea}
			for _, c := range a.Communities {
				area.Children = append(area.Children, &Node{Name: c, Kind: KindCommunity})
			}
			areas = append(areas, area)
		}
		if r.Name == def.Root {
			root.Children = append(root.Children, areas...)
			continue
		}
		root.Children = append(root.Children, &Node{Name: r.Name, Kind: KindRegion, Children: areas})
	}
	return root
}

// normalizeZones builds the root city with its areas, numbered zones and
// communities, followed by satellite cities and municipal districts.
func normalizeZones(def Definition) (*Node, error) {
	root := &Node{Name: def.Root, Kind: KindCity}
	areas := make(map[string]*Node)
	zones := make(map[string]*Node)
	cities := make(map[string]*Node)

	for _, name := range def.Cities {
		if name == def.Root {
			continue
		}
		cities[name] = &Node{Name: name, Kind: KindCity}
	}

	var direct []*Node
	for _, c := range def.Communities {
		comm := &Node{Name: c.Name, Kind: KindCommunity}
		if c.City != def.Root {
			city, ok := cities[c.City]
			if !ok {
				return nil, fmt.Errorf("city %s: community %q belongs to unknown city %q", def.City, c.Name, c.City)
			}
			city.Children = append(city.Children, comm)
			continue
		}
		if c.Area == "" {
			direct = append(direct, comm)
			continue
		}

		area, ok := areas[c.Area]
		if !ok {
			area = &Node{Name: c.Area, Kind: KindArea}
			areas[c.Area] = area
			root.Children = append(root.Children, area)
		}
		if c.Zone == 0 {
			area.Children = append(area.Children, comm)
			continue
		}

		zoneName := ZoneName(c.Zone)
		zone, ok := zones[zoneName]
		if !ok {
			zone = &Node{Name: zoneName, Kind: KindZone}
			zones[zoneName] = zone
			area.Children = append(area.Children, zone)
		}
		zone.Children = append(zone.Children, comm)
	}

	root.Children = append(root.Children, direct...)
	for _, name := range def.Cities {
		if city, ok := cities[name]; ok {
			root.Children = append(root.Children, city)
		}
	}
	for _, name := range def.MunicipalDistricts {
		root.Children = append(root.Children, &Node{Name: name, Kind: KindMunicipalDistrict})
	}
	return root, nil
}

func applyAttributes(root *Node, def Definition) {
	measured := make(map[string]bool, len(def.Measured))
	for _, name := range def.Measured {
		measured[name] = true
	}
	root.Walk(func(n *Node, _ []string) {
		if measured[n.Name] {
			n.Measured = true
		}
		if c, ok := def.Centers[n.Name]; ok && n.Center == nil {
			center := c
			n.Center = &center
		}
	})
}
