package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCityIDs(t *testing.T) {
	ids := GetCityIDs()
	assert.Equal(t, len(SupportedCities), len(ids))
	assert.Contains(t, ids, "calgary")
	assert.Contains(t, ids, "edmonton")
	assert.Contains(t, ids, "winnipeg")
}

func TestGetCityByID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		expectTypes []string
		expectError error
	}{
		{
			name:        "Calgary",
			id:          "calgary",
			expectTypes: []string{"detached", "semi-detached", "row", "apartment"},
		},
		{
			name:        "Winnipeg",
			id:          "winnipeg",
			expectTypes: []string{"detached", "attached", "condo"},
		},
		{
			name:        "Unknown city",
			id:          "amsterdam",
			expectError: ErrUnknownCity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			city, err := GetCityByID(tt.id)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectTypes, city.PropertyTypes)
		})
	}
}

func TestCity_RollupTypes(t *testing.T) {
	edmonton, err := GetCityByID("edmonton")
	require.NoError(t, err)

	assert.True(t, edmonton.HasPropertyType("duplex"))
	assert.NotContains(t, edmonton.RollupTypes(), "duplex")
	assert.Equal(t, []string{"detached", "semi-detached", "row", "apartment"}, edmonton.RollupTypes())

	calgary, _ := GetCityByID("calgary")
	assert.Equal(t, calgary.PropertyTypes, calgary.RollupTypes())
	assert.False(t, calgary.HasPropertyType("condo"))
}
