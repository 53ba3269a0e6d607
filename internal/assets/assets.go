package assets

import (
	"embed"
	"io/fs"
)

//go:embed embedded_templates
var Templates embed.FS

//go:embed embedded_schemas
var Schemas embed.FS

func GetTemplatesFS() fs.FS {
	if sub, err := fs.Sub(Templates, "embedded_templates"); err == nil {
		return sub
	}
	return Templates
}

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

// GetSchema returns the embedded schema bytes by path relative to embedded_schemas.
func GetSchema(relPath string) ([]byte, bool) {
	data, err := fs.ReadFile(GetSchemasFS(), relPath)
	return data, err == nil
}

// GetTemplate returns the embedded template bytes by path relative to embedded_templates.
func GetTemplate(relPath string) ([]byte, bool) {
	data, err := fs.ReadFile(GetTemplatesFS(), relPath)
	return data, err == nil
}
