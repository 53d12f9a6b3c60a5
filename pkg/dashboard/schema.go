package dashboard

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const payloadSchema = `{
  "type": "object",
  "required": ["kpis", "summary", "charts"],
  "properties": {
    "kpis": {
      "type": "object",
      "required": ["total_sales", "total_units_sold", "average_satisfaction"],
      "properties": {
        "total_sales": {"type": ["number", "string"]},
        "total_units_sold": {"type": ["number", "string"]},
        "average_satisfaction": {"type": ["number", "string"]}
      }
    },
    "summary": {"type": "string"},
    "charts": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(payloadSchema)

// Validate checks a raw /dashboard body against the payload shape. Missing
// chart keys are allowed here; the presenter reports them.
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate dashboard: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid dashboard payload: %s", strings.Join(msgs, "; "))
}
