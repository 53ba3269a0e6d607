package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogResolve(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{LayerDefaultBuildSystem, LayerEditableProject, LayerPreferSdist, LayerPreferWheels}, c.Names())

	layers, err := c.Resolve([]string{LayerPreferWheels, LayerPreferWheels})
	require.NoError(t, err)
	assert.Len(t, layers, 2)

	_, err = c.Resolve([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownLayer)
}

func TestCatalogWithIsImmutable(t *testing.T) {
	base := DefaultCatalog()
	extended, err := base.With(named("weather-native"))
	require.NoError(t, err)

	_, ok := extended.Get("weather-native")
	assert.True(t, ok)
	_, ok = base.Get("weather-native")
	assert.False(t, ok)

	_, err = extended.With(named(LayerPreferWheels))
	assert.ErrorIs(t, err, ErrDuplicateLayer)
}

func TestNewCatalogRejectsUnnamed(t *testing.T) {
	_, err := NewCatalog(Layer{})
	assert.Error(t, err)
}

func TestRegistryLayersFor(t *testing.T) {
	c, err := DefaultCatalog().With(named("weather-native"))
	require.NoError(t, err)
	r, err := NewRegistry(c, map[string]string{"weather": "weather-native"})
	require.NoError(t, err)

	got := r.LayersFor("weather")
	require.Len(t, got, 1)
	assert.Equal(t, "weather-native", got[0].Name)

	miss := r.LayersFor("Weather")
	assert.NotNil(t, miss)
	assert.Empty(t, miss, "lookup is exact and a miss is not an error")
	assert.Same(t, c, r.Catalog())
}

func TestNewRegistryUnknownLayer(t *testing.T) {
	_, err := NewRegistry(DefaultCatalog(), map[string]string{"weather": "missing"})
	assert.ErrorIs(t, err, ErrUnknownLayer)
}
