package skills

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// SchemaID identifies the front-matter schema.
const SchemaID = "https://github.com/jingkaihe/skillet/schemas/skill-metadata.json"

// MetadataSchema returns the JSON schema of SKILL.md front-matter.
func MetadataSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&Metadata{})
	s.ID = jsonschema.ID(SchemaID)
	s.Title = "Skill metadata"
	s.Description = "YAML front-matter of a SKILL.md file"
	return s
}

// MetadataSchemaJSON returns MetadataSchema indented for display.
func MetadataSchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(MetadataSchema(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode metadata schema")
	}
	return data, nil
}
