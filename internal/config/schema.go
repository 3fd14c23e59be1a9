package config

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer"},
    "accounts_files": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "log_file": {"type": "string"},
    "encryption_recipients": {"type": "array", "items": {"type": "string", "pattern": "^age1"}},
    "age_identity_file": {"type": "string"},
    "config_file_mask": {"type": ["integer", "string"]},
    "account_file_mask": {"type": ["integer", "string"]},
    "log_file_mask": {"type": ["integer", "string"]},
    "metrics_file": {"type": "string"},
    "archive_file": {"type": "string", "minLength": 1},
    "previous_archive_file": {"type": "string"},
    "secretStores": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "timeout_ms": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

// ValidateSchema validates a decoded YAML document against a JSON schema
// and returns one message per violation.
func ValidateSchema(schema string, doc interface{}) []string {
	data, err := json.Marshal(doc)
	if err != nil {
		return []string{fmt.Sprintf("document cannot be represented as JSON: %v", err)}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return []string{fmt.Sprintf("schema validation error: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems
}
