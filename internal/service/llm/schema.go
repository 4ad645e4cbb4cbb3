package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// wireSegment is the shape the model must produce. Strict structured output
// has no optional fields, so End is always present and ignored for instant
// categories.
type wireSegment struct {
	Type        string  `json:"type" jsonschema:"enum=sponsor,enum=selfpromo,enum=interaction,enum=outro,enum=preview,enum=greeting,enum=chapter,enum=highlight"`
	Start       float64 `json:"start" jsonschema:"description=Start time in seconds"`
	End         float64 `json:"end" jsonschema:"description=End time in seconds; 0 for chapter and highlight"`
	Description string  `json:"description"`
}

type wireTimeline struct {
	Segments []wireSegment `json:"segments"`
}

// generateSchema reflects T into an OpenAI-compliant strict JSON schema
func generateSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	ensureStrict(m)
	return m, nil
}

// ensureStrict forbids extra properties and marks every property required
func ensureStrict(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema["required"] = required
		}
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for _, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				ensureStrict(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrict(items)
	}
}
