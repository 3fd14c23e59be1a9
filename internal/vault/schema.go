package vault

// accountSchema describes one account file after YAML decoding.
const accountSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "scalar": {"type": ["string", "number", "boolean", "null"]},
    "identifier": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_-]*$"}
  },
  "type": "object",
  "additionalProperties": false,
  "required": ["accounts"],
  "properties": {
    "accounts": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "class": {"type": "string"},
          "desc": {"$ref": "#/definitions/scalar"},
          "fields": {
            "type": "object",
            "propertyNames": {"$ref": "#/definitions/identifier"},
            "additionalProperties": {
              "oneOf": [
                {"$ref": "#/definitions/scalar"},
                {"type": "object", "additionalProperties": {"$ref": "#/definitions/scalar"}}
              ]
            }
          },
          "secrets": {
            "type": "object",
            "propertyNames": {"$ref": "#/definitions/identifier"},
            "additionalProperties": {
              "type": "object",
              "additionalProperties": false,
              "properties": {
                "from": {"type": "string", "pattern": "^store://"},
                "literal": {"$ref": "#/definitions/scalar"},
                "transform": {"type": "string"},
                "optional": {"type": "boolean"}
              },
              "oneOf": [
                {"required": ["from"]},
                {"required": ["literal"]}
              ]
            }
          }
        }
      }
    }
  }
}`
