package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"marketstats/server/internal/location"
)

// Locations returns a FeatureCollection with a point for every node of
// the tree that has a center, and a convex hull around the centers below
// every parent with at least three of them.
func Locations(tree *location.Tree) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	tree.Root.Walk(func(n *location.Node, path []string) {
		if n.Center != nil {
			feature := geojson.NewFeature(*n.Center)
			feature.Properties = properties(tree.City, n, path, "point")
			fc.Append(feature)
		}
		if n.IsLeaf() {
			return
		}
		if hull := ConvexHull(descendantCenters(n)); hull != nil {
			feature := geojson.NewFeature(orb.Polygon{hull})
			feature.Properties = properties(tree.City, n, path, "hull")
			fc.Append(feature)
		}
	})
	return fc
}

func properties(city string, n *location.Node, path []string, geometryType string) geojson.Properties {
	p := append([]string{}, path...)
	return geojson.Properties{
		"city":          city,
		"name":          n.Name,
		"kind":          string(n.Kind),
		"path":          p,
		"measured":      n.Measured,
		"geometry_type": geometryType,
	}
}

func descendantCenters(n *location.Node) []orb.Point {
	var points []orb.Point
	for _, child := range n.Children {
		child.Walk(func(d *location.Node, _ []string) {
			if d.Center != nil {
				points = append(points, *d.Center)
			}
		})
	}
	return points
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// ConvexHull returns the closed counter-clockwise hull of points, or nil
// when fewer than three distinct, non-collinear points are given.
func ConvexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, 0, len(points))
	seen := make(map[orb.Point]bool, len(points))
	for _, p := range points {
		if !seen[p] {
			seen[p] = true
			pts = append(pts, p)
		}
	}
	if len(pts) < 3 {
		return nil
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	// Monotone chain
	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// hull now ends with its first point
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}
