package nbdconfig

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema document describing the *.nbd config
// format, reflected from NbdConfig itself so the published schema can
// never drift from the struct the store actually parses against.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	schema := reflector.Reflect(&NbdConfig{})
	schema.Title = "NBD client config"
	schema.Description = "Per-client disk attachment config read from <ClientAddr>.nbd files"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling nbd config schema: %w", err)
	}
	return out, nil
}
