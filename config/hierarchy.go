package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"marketstats/server/internal/location"
)

// LoadHierarchy reads and normalizes the hierarchy definition of one city.
func LoadHierarchy(dir string, city City) (*location.Tree, error) {
	path := filepath.Join(dir, city.HierarchyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}

	var def location.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if def.City == "" {
		def.City = city.ID
	}
	if def.City != city.ID {
		return nil, fmt.Errorf("%s describes city %q, expected %q", path, def.City, city.ID)
	}

	tree, err := location.Normalize(def)
	if err != nil {
		return nil, fmt.Errorf("failed to load hierarchy of %s: %w", city.ID, err)
	}
	return tree, nil
}

// LoadHierarchies loads every city's hierarchy from dir into a registry.
func LoadHierarchies(dir string, cities []City) (*location.Registry, error) {
	trees := make([]*location.Tree, 0, len(cities))
	for _, city := range cities {
		tree, err := LoadHierarchy(dir, city)
		if err != nil {
			return nil, err
		}
		trees = append(trees, tree)
	}
	return location.NewRegistry(trees...), nil
}
