package events

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// eventSchema is the loosest shape a reply object must have to count as an
// event. Field content is normalized afterwards; this only rejects objects
// that are clearly something else.
const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {"required": ["year"]},
    {"required": ["headline"]},
    {"required": ["details"]}
  ],
  "properties": {
    "year":              {"type": ["integer", "number", "string"]},
    "headline":          {"type": ["string", "number"]},
    "details":           {"type": ["string", "number"]},
    "impacts":           {"type": ["object", "array", "null"]},
    "society_relations": {"type": ["array", "object", "null"]},
    "world_metrics":     {"type": ["array", "object", "null"]}
  }
}`

var compiledSchema = jsonschema.MustCompileString("world_event.schema.json", eventSchema)

// validateShape checks lower-cased top-level fields against the event schema.
func validateShape(fields []field) error {
	doc := make(map[string]any, len(fields))
	for _, f := range fields {
		var v any
		if err := json.Unmarshal(f.Value, &v); err != nil {
			return err
		}
		doc[f.Key] = v
	}
	return compiledSchema.Validate(doc)
}
