package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poetryManifest = `
[tool.poetry]
name = "weather"
version = "1.2.0"
description = "Weather lookups over MCP"
authors = ["Ada Lovelace <ada@example.com>"]

[tool.poetry.dependencies]
zeta = "^1.0"
python = ">=3.10"
httpx = { version = "0.27.0", extras = ["http2"] }
alpha = "*"
local = { path = "../local" }

[tool.poetry.group.dev.dependencies]
pytest = "8.0.0"

[tool.poetry.scripts]
weather = "weather.server:main"
`

func TestParsePreservesInsertionOrder(t *testing.T) {
	doc, err := Parse([]byte(poetryManifest))
	require.NoError(t, err)

	deps := doc.Table("tool", "poetry", "dependencies")
	require.NotNil(t, deps)
	assert.Equal(t, []string{"zeta", "python", "httpx", "alpha", "local"}, deps.Keys())

	httpx := deps.Table("httpx")
	require.NotNil(t, httpx)
	v, _ := httpx.String("version")
	assert.Equal(t, "0.27.0", v)
	extras, ok := httpx.StringSlice("extras")
	assert.True(t, ok)
	assert.Equal(t, []string{"http2"}, extras)

	assert.Equal(t, []string{"tool"}, doc.Root.Keys())
	assert.Equal(t, []string{"name", "version", "description", "authors", "dependencies", "group", "scripts"},
		doc.Table("tool", "poetry").Keys())
}

func TestParseScalarKinds(t *testing.T) {
	src := `
int = 1_000
hex = 0xff
neg = -3
float = 3.5
exp = 1e3
yes = true
no = false
when = 1979-05-27T07:32:00Z
day = 1979-05-27
arr = [1, "two", [3]]
dotted.key = "v"
`
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	get := func(k string) Value {
		v, ok := doc.Root.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, int64(1000), get("int"))
	assert.Equal(t, int64(255), get("hex"))
	assert.Equal(t, int64(-3), get("neg"))
	assert.Equal(t, 3.5, get("float"))
	assert.Equal(t, 1000.0, get("exp"))
	assert.Equal(t, true, get("yes"))
	assert.Equal(t, false, get("no"))
	assert.Equal(t, Literal("1979-05-27T07:32:00Z"), get("when"))
	assert.Equal(t, Literal("1979-05-27"), get("day"))
	assert.Equal(t, []Value{int64(1), "two", []Value{int64(3)}}, get("arr"))

	v, ok := doc.Get("dotted", "key")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestParseArrayTables(t *testing.T) {
	src := `
[[package]]
name = "a"

[package.source]
registry = "https://pypi.org/simple"

[[package]]
name = "b"
`
	doc, err := Parse([]byte(src))
	require.NoError(t, err)

	v, ok := doc.Root.Get("package")
	require.True(t, ok)
	pkgs, ok := v.([]Value)
	require.True(t, ok)
	require.Len(t, pkgs, 2)

	first := pkgs[0].(*Table)
	name, _ := first.String("name")
	assert.Equal(t, "a", name)
	reg, _ := first.Table("source").String("registry")
	assert.Equal(t, "https://pypi.org/simple", reg)

	second := pkgs[1].(*Table)
	assert.Nil(t, second.Table("source"))
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":        "[tool.poetry\nname = 1",
		"duplicate key": "a = 1\na = 2\n",
		"redefined":     "[a]\nb = 1\n[a]\nc = 2\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestTableNilSafety(t *testing.T) {
	var tbl *Table
	assert.Nil(t, tbl.Keys())
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Table("x"))
	_, ok := tbl.String("x")
	assert.False(t, ok)

	var doc *Document
	assert.Nil(t, doc.Table("a"))
	_, ok = doc.Get("a")
	assert.False(t, ok)
}

func TestTableSetKeepsFirstPosition(t *testing.T) {
	tbl := NewTable()
	tbl.Set("b", 1)
	tbl.Set("a", 2)
	tbl.Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, tbl.Keys())
	v, _ := tbl.Get("b")
	assert.Equal(t, 3, v)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	require.NoError(t, os.WriteFile(path, []byte(poetryManifest), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DialectLegacy, DetectDialect(doc))

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Dialect
	}{
		{"poetry", "[tool.poetry]\nname = \"x\"\n", DialectLegacy},
		{"pep621", "[project]\nname = \"x\"\n", DialectTarget},
		{"both", "[project]\nname = \"x\"\n[tool.poetry]\nname = \"x\"\n", DialectTarget},
		{"neither", "[tool.black]\nline-length = 100\n", DialectUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, DetectDialect(doc))
		})
	}
}
