package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fulmenhq/mcpenv/internal/assets"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Names of the embedded schemas.
const (
	OverlayFileV1 = "overlay-file-v1"
	ServerMetaV1  = "server-meta-v1"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"` // dotted field path, e.g. "layers.0.set.format"
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err folds an invalid result into a single error; nil when valid.
func (r *Result) Err(subject string) error {
	if r == nil || r.Valid {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.String())
	}
	return fmt.Errorf("%s failed schema validation: %s", subject, strings.Join(parts, "; "))
}

// registry holds pre-compiled schemas keyed by name.
var registry = make(map[string]*gojsonschema.Schema)

func init() {
	known := map[string]string{
		OverlayFileV1: "overlay-file-v1.yaml",
		ServerMetaV1:  "server-meta-v1.yaml",
	}
	for name, path := range known {
		schemaBytes, ok := assets.GetSchema(path)
		if !ok || len(schemaBytes) == 0 {
			continue
		}
		// gojsonschema wants JSON
		var schemaData interface{}
		if err := yaml.Unmarshal(schemaBytes, &schemaData); err != nil {
			continue
		}
		jsonBytes, err := json.Marshal(schemaData)
		if err != nil {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
		if err != nil {
			continue
		}
		registry[name] = schema
	}
}

// Names lists the registered schema names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate validates data (interface{}) against the named schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	schema, ok := registry[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" || field == "(root)" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: verr.Description(),
			})
		}
	}

	return res, nil
}

// ValidateYAML decodes a YAML document and validates it against the named schema.
func ValidateYAML(data []byte, schemaName string) (*Result, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return Validate(doc, schemaName)
}
