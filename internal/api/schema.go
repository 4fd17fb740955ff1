package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"cartseg/internal/segment"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// runRequestSchemaJSON constrains run-request bodies before they reach the
// RunConfig decoder. Unknown fields are rejected so typos fail loudly
// instead of silently falling back to defaults.
const runRequestSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "aov_low": {"type": "number", "minimum": 0},
    "aov_high": {"type": "number", "minimum": 0},
    "aov_percentiles": {
      "type": "array",
      "items": {"type": "number", "minimum": 0, "maximum": 100},
      "minItems": 2,
      "maxItems": 2
    },
    "engagement_cutoff": {"type": "number"},
    "profitability_cutoff": {"type": "number"},
    "weights": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "conversion": {"type": "number", "minimum": 0},
        "lift": {"type": "number", "minimum": 0},
        "profitability": {"type": "number", "minimum": 0},
        "strategic": {"type": "number", "minimum": 0},
        "size": {"type": "number", "minimum": 0}
      }
    },
    "min_segment_size": {"type": "integer", "minimum": 0},
    "size_saturation": {"type": "number", "minimum": 0, "maximum": 1},
    "strategic_fit": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "baseline_conversion": {"type": "number", "exclusiveMinimum": 0},
    "split_oversize": {"type": "boolean"},
    "max_segment_size": {"type": "integer", "minimum": 0}
  }
}`

var runRequestSchema = compileRunRequestSchema()

func compileRunRequestSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://cartseg.schemas.local/run-request.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(runRequestSchemaJSON)); err != nil {
		panic(fmt.Sprintf("run-request schema load failed: %v", err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("run-request schema compile failed: %v", err))
	}
	return compiled
}

// decodeRunRequest validates the request body against the run-request schema
// and decodes it into configuration overrides. An empty body means no
// overrides.
func decodeRunRequest(body []byte) (*segment.RunConfig, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := runRequestSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var overrides segment.RunConfig
	if err := json.Unmarshal(body, &overrides); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	return &overrides, nil
}
