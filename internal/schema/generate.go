// Package schema generates JSON Schema from the janlauncher config types.
package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

const (
	schemaURI = "https://json-schema.org/draft/2020-12/schema"
	title     = "janlauncher configuration"

	// FileName is the schema file written next to the global config.
	FileName = "config.schema.json"
)

// Generate reflects config.Config into a schema. Unknown keys are rejected so
// editors flag typos in config.toml.
func Generate() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
	}

	s := r.Reflect(&config.Config{})
	s.Version = schemaURI
	s.ID = jsonschema.ID(FileName)
	s.Title = title
	s.Description = "Configuration of the janlauncher game version manager."

	return s
}

// GenerateJSON marshals Generate with a trailing newline, pretty-printed when
// indent is set.
func GenerateJSON(indent bool) ([]byte, error) {
	marshal := json.Marshal
	if indent {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}

	data, err := marshal(Generate())
	if err != nil {
		return nil, errors.Wrap(err, "marshaling schema to JSON")
	}

	return append(data, '\n'), nil
}

// Directive returns the Taplo schema comment pointing at ref.
func Directive(ref string) string {
	return "#:schema " + ref
}
