package manifest

import (
	"errors"
	"strings"
)

// ErrNoLegacyTable is returned when a document has no [tool.poetry] table.
var ErrNoLegacyTable = errors.New("no [tool.poetry] table")

// Legacy is a typed view over a Poetry [tool.poetry] table. Optional
// metadata is nil when absent; defaults are applied by the converter.
type Legacy struct {
	Name        *string
	Version     *string
	Description *string
	Authors     []string
	License     *string
	Readme      *string

	// Dependencies keeps the raw specs, python included, in source order.
	Dependencies *Table
	// DevDependencies is group.dev.dependencies, or the pre-1.2
	// dev-dependencies table when the group is absent.
	DevDependencies *Table
	Scripts         *Table
}

// ReadLegacy extracts the Poetry view from doc.
func ReadLegacy(doc *Document) (*Legacy, error) {
	poetry := doc.Table("tool", "poetry")
	if poetry == nil {
		return nil, ErrNoLegacyTable
	}

	l := &Legacy{
		Name:         optString(poetry, "name"),
		Version:      optString(poetry, "version"),
		Description:  optString(poetry, "description"),
		License:      optString(poetry, "license"),
		Dependencies: orEmpty(poetry.Table("dependencies")),
		Scripts:      orEmpty(poetry.Table("scripts")),
	}
	if authors, ok := poetry.StringSlice("authors"); ok {
		l.Authors = authors
	}

	// readme may be a string or a list of files; the first one is kept
	if r := optString(poetry, "readme"); r != nil {
		l.Readme = r
	} else if files, ok := poetry.StringSlice("readme"); ok && len(files) > 0 {
		l.Readme = &files[0]
	}

	dev := poetry.Table("group").Table("dev").Table("dependencies")
	if dev == nil {
		dev = poetry.Table("dev-dependencies")
	}
	l.DevDependencies = orEmpty(dev)

	return l, nil
}

func optString(t *Table, key string) *string {
	if s, ok := t.String(key); ok {
		return &s
	}
	return nil
}

func orEmpty(t *Table) *Table {
	if t == nil {
		return NewTable()
	}
	return t
}

// ParseAuthor splits a Poetry author string "Name <email>" into its parts.
func ParseAuthor(s string) Author {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "<")
	if open >= 0 && strings.HasSuffix(s, ">") {
		return Author{
			Name:  strings.TrimSpace(s[:open]),
			Email: strings.TrimSpace(s[open+1 : len(s)-1]),
		}
	}
	return Author{Name: s}
}
