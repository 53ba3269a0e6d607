package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLegacy(t *testing.T) {
	doc, err := Parse([]byte(poetryManifest))
	require.NoError(t, err)

	l, err := ReadLegacy(doc)
	require.NoError(t, err)
	require.NotNil(t, l.Name)
	assert.Equal(t, "weather", *l.Name)
	assert.Equal(t, "1.2.0", *l.Version)
	assert.Nil(t, l.License)
	assert.Nil(t, l.Readme)
	assert.Equal(t, []string{"Ada Lovelace <ada@example.com>"}, l.Authors)
	assert.Equal(t, 5, l.Dependencies.Len())
	assert.Equal(t, []string{"pytest"}, l.DevDependencies.Keys())
	assert.Equal(t, []string{"weather"}, l.Scripts.Keys())
}

func TestReadLegacyDefaults(t *testing.T) {
	doc, err := Parse([]byte("[tool.poetry]\nname = \"bare\"\n"))
	require.NoError(t, err)

	l, err := ReadLegacy(doc)
	require.NoError(t, err)
	assert.Nil(t, l.Version)
	assert.Nil(t, l.Description)
	assert.Empty(t, l.Authors)
	assert.Equal(t, 0, l.Dependencies.Len())
	assert.Equal(t, 0, l.DevDependencies.Len())
	assert.Equal(t, 0, l.Scripts.Len())
}

func TestReadLegacyOldDevDependencies(t *testing.T) {
	src := "[tool.poetry]\nname = \"old\"\n[tool.poetry.dev-dependencies]\nblack = \"23.1.0\"\n"
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	l, err := ReadLegacy(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"black"}, l.DevDependencies.Keys())
}

func TestReadLegacyReadmeList(t *testing.T) {
	doc, err := Parse([]byte("[tool.poetry]\nname = \"r\"\nreadme = [\"README.md\", \"CHANGES.md\"]\n"))
	require.NoError(t, err)

	l, err := ReadLegacy(doc)
	require.NoError(t, err)
	require.NotNil(t, l.Readme)
	assert.Equal(t, "README.md", *l.Readme)
}

func TestReadLegacyMissingTable(t *testing.T) {
	doc, err := Parse([]byte("[project]\nname = \"x\"\n"))
	require.NoError(t, err)
	_, err = ReadLegacy(doc)
	assert.ErrorIs(t, err, ErrNoLegacyTable)
}

func TestParseAuthor(t *testing.T) {
	assert.Equal(t, Author{Name: "Ada Lovelace", Email: "ada@example.com"}, ParseAuthor("Ada Lovelace <ada@example.com>"))
	assert.Equal(t, Author{Name: "Solo"}, ParseAuthor(" Solo "))
	assert.Equal(t, Author{Email: "bot@example.com"}, ParseAuthor("<bot@example.com>"))
}
