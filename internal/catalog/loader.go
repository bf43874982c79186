package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/opstrail/opstrail-core/internal/models"
)

//go:embed roadmap_schema.json
var roadmapSchemaJSON []byte

var roadmapSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("roadmap_schema.json", bytes.NewReader(roadmapSchemaJSON)); err != nil {
		panic(fmt.Sprintf("catalog: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("roadmap_schema.json")
	if err != nil {
		panic(fmt.Sprintf("catalog: compile schema: %v", err))
	}
	return schema
}

// Parse validates raw roadmap JSON against the embedded schema and builds
// an indexed catalog. A definition that fails the schema is a build-time
// content bug, so the error is returned rather than degraded.
func Parse(raw []byte) (*Catalog, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("invalid roadmap json: %w", err)
	}
	if err := roadmapSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("roadmap schema violation: %w", err)
	}

	var roadmap models.Roadmap
	if err := json.Unmarshal(raw, &roadmap); err != nil {
		return nil, fmt.Errorf("decode roadmap: %w", err)
	}

	return New(roadmap)
}

// Load reads a roadmap definition from disk.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roadmap file: %w", err)
	}
	return Parse(raw)
}
