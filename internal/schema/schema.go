// Package schema publishes JSON Schemas for the snapshot the engine accepts
// and the result it returns.
package schema

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/narrative"
)

var (
	beatType = reflect.TypeFor[narrative.Beat]()
	roleType = reflect.TypeFor[narrative.Role]()
)

func generate[T any](name string) *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper:                    enums,
	}
	var v T
	s := r.Reflect(v)
	s.ID = jsonschema.ID("https://github.com/vampirenirmal/storyscope/schema/" + name + ".json")
	return s
}

// enums describes the closed string vocabularies.
func enums(t reflect.Type) *jsonschema.Schema {
	var values []string
	switch t {
	case beatType:
		for _, b := range narrative.Beats() {
			values = append(values, string(b))
		}
	case roleType:
		values = []string{
			string(narrative.RoleProtagonist),
			string(narrative.RoleAntagonist),
			string(narrative.RoleSupporting),
			string(narrative.RoleMinor),
		}
	default:
		return nil
	}
	s := &jsonschema.Schema{Type: "string"}
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

var schemas = map[string]func() *jsonschema.Schema{
	"snapshot": func() *jsonschema.Schema { return generate[narrative.Snapshot]("snapshot") },
	"result":   func() *jsonschema.Schema { return generate[analysis.Result]("result") },
}

// Names lists the available schemas.
func Names() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ByName returns the schema called name ("snapshot" or "result").
func ByName(name string) (*jsonschema.Schema, error) {
	gen, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (want one of %v)", name, Names())
	}
	return gen(), nil
}
