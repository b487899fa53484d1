package config

import (
	"errors"
	"fmt"
)

// ErrUnknownCity is returned for a city that is not in SupportedCities.
var ErrUnknownCity = errors.New("unknown city")

// City represents a city configuration
type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Report order of the tracked property types
	PropertyTypes []string `json:"property_types"`
	// Property types that are never rolled up to parent locations
	RollupExclusions []string `json:"rollup_exclusions,omitempty"`
	// Hierarchy definition file inside HIERARCHY_DIR
	HierarchyFile string `json:"-"`
}

// RollupTypes returns the property types the rollup computes.
func (c City) RollupTypes() []string {
	excluded := make(map[string]bool, len(c.RollupExclusions))
	for _, pt := range c.RollupExclusions {
		excluded[pt] = true
	}
	types := make([]string, 0, len(c.PropertyTypes))
	for _, pt := range c.PropertyTypes {
		if !excluded[pt] {
			types = append(types, pt)
		}
	}
	return types
}

// HasPropertyType reports whether the city tracks pt.
func (c City) HasPropertyType(pt string) bool {
	for _, t := range c.PropertyTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// SupportedCities is a list of cities supported by the application
var SupportedCities = []City{
	{
		ID:            "calgary",
		Name:          "Calgary",
		PropertyTypes: []string{"detached", "semi-detached", "row", "apartment"},
		HierarchyFile: "calgary.json",
	},
	{
		ID:               "edmonton",
		Name:             "Edmonton",
		PropertyTypes:    []string{"detached", "semi-detached", "row", "apartment", "duplex"},
		RollupExclusions: []string{"duplex"},
		HierarchyFile:    "edmonton.json",
	},
	{
		ID:            "winnipeg",
		Name:          "Winnipeg",
		PropertyTypes: []string{"detached", "attached", "condo"},
		HierarchyFile: "winnipeg.json",
	},
	{
		ID:            "victoria",
		Name:          "Victoria",
		PropertyTypes: []string{"detached", "row", "condo", "residential"},
		HierarchyFile: "victoria.json",
	},
	{
		ID:            "vancouver",
		Name:          "Vancouver",
		PropertyTypes: []string{"detached", "townhome", "apartment"},
		HierarchyFile: "vancouver.json",
	},
	{
		ID:            "fraser-valley",
		Name:          "Fraser Valley",
		PropertyTypes: []string{"detached", "townhome", "apartment"},
		HierarchyFile: "fraser-valley.json",
	},
}

// GetCityIDs returns a list of supported city ids
func GetCityIDs() []string {
	ids := make([]string, len(SupportedCities))
	for i, city := range SupportedCities {
		ids[i] = city.ID
	}
	return ids
}

// GetCityByID returns a city configuration by id
func GetCityByID(id string) (City, error) {
	for _, city := range SupportedCities {
		if city.ID == id {
			return city, nil
		}
	}
	return City{}, fmt.Errorf("%w: %s", ErrUnknownCity, id)
}
