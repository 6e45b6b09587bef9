package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaProperty     = "property.json"
	schemaPropertyList = "property-list.json"
)

var compiledSchemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	names := []string{schemaProperty, schemaPropertyList}
	for _, name := range names {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			panic(fmt.Sprintf("read schema %s: %v", name, err))
		}
		if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
			panic(fmt.Sprintf("add schema %s: %v", name, err))
		}
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := compiler.Compile(name)
		if err != nil {
			panic(fmt.Sprintf("compile schema %s: %v", name, err))
		}
		out[name] = s
	}
	return out
}

// validateBody checks a raw response body against the named schema.
func validateBody(name string, body []byte) error {
	schema, ok := compiledSchemas[name]
	if !ok {
		return fmt.Errorf("schema %s not registered", name)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match %s: %w", name, err)
	}
	return nil
}
