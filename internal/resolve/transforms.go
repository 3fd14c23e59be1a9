package resolve

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TransformNames lists the supported transforms, for help text.
const TransformNames = "trim, base64_encode, base64_decode, json_extract:.path, yaml_extract:.path, multiline_to_single, replace:old:new, join:separator"

// ApplyTransform runs a transform chain over value. Steps are separated by
// '|', or by ',' when the chain has no '|'.
func ApplyTransform(value, chain string) (string, error) {
	sep := ","
	if strings.Contains(chain, "|") {
		sep = "|"
	}

	result := value
	for _, t := range strings.Split(chain, sep) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		var err error
		if result, err = applySingleTransform(result, t); err != nil {
			return "", fmt.Errorf("transform '%s' failed: %w", t, err)
		}
	}
	return result, nil
}

func applySingleTransform(value, transform string) (string, error) {
	name, arg, _ := strings.Cut(transform, ":")
	switch name {
	case "trim":
		return strings.TrimSpace(value), nil

	case "multiline_to_single":
		return strings.ReplaceAll(strings.ReplaceAll(value, "\r", ""), "\n", "\\n"), nil

	case "base64_decode":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("base64 decode failed: %w", err)
		}
		return string(decoded), nil

	case "base64_encode":
		return base64.StdEncoding.EncodeToString([]byte(value)), nil

	case "json_extract":
		var data interface{}
		if err := json.Unmarshal([]byte(value), &data); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		return extractPath(data, arg, jsonString)

	case "yaml_extract":
		var data interface{}
		if err := yaml.Unmarshal([]byte(value), &data); err != nil {
			return "", fmt.Errorf("invalid YAML: %w", err)
		}
		return extractPath(data, arg, yamlString)

	case "replace":
		from, to, ok := strings.Cut(arg, ":")
		if !ok || from == "" {
			return "", fmt.Errorf("replace transform requires format 'replace:from:to'")
		}
		return strings.ReplaceAll(value, from, to), nil

	case "join":
		return joinValues(value, arg)
	}
	return "", fmt.Errorf("unknown transform: %s (available: %s)", transform, TransformNames)
}

// extractPath walks ".a.b[0].c" through a decoded document.
func extractPath(data interface{}, path string, encode func(interface{}) (string, error)) (string, error) {
	if !strings.HasPrefix(path, ".") {
		return "", fmt.Errorf("path %q must start with '.'", path)
	}

	current := data
	for _, part := range strings.Split(strings.TrimPrefix(path, "."), ".") {
		if part == "" {
			continue
		}
		name, indexes, err := splitIndexes(part)
		if err != nil {
			return "", err
		}
		if name != "" {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("cannot select '%s' from a non-object", name)
			}
			if current, ok = obj[name]; !ok {
				return "", fmt.Errorf("field '%s' not found", name)
			}
		}
		for _, idx := range indexes {
			list, ok := current.([]interface{})
			if !ok {
				return "", fmt.Errorf("cannot index a non-array at '%s'", part)
			}
			if idx < 0 || idx >= len(list) {
				return "", fmt.Errorf("index %d out of range at '%s'", idx, part)
			}
			current = list[idx]
		}
	}
	return encode(current)
}

// splitIndexes splits "items[1][0]" into "items" and [1 0].
func splitIndexes(part string) (string, []int, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return part, nil, nil
	}
	name, rest := part[:open], part[open:]
	var indexes []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, fmt.Errorf("malformed index in '%s'", part)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("malformed index in '%s'", part)
		}
		indexes = append(indexes, n)
		rest = rest[end+1:]
	}
	return name, indexes, nil
}

func scalarString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", true
	}
	return "", false
}

func jsonString(v interface{}) (string, error) {
	if s, ok := scalarString(v); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(b), nil
}

func yamlString(v interface{}) (string, error) {
	if s, ok := scalarString(v); ok {
		return s, nil
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// joinValues joins a JSON array, or a list split on newlines, commas,
// semicolons, pipes or spaces, with separator.
func joinValues(input, separator string) (string, error) {
	var list []interface{}
	if err := json.Unmarshal([]byte(input), &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			s, err := jsonString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, separator), nil
	}

	input = strings.TrimSpace(input)
	for _, delimiter := range []string{"\n", ",", ";", "|", " "} {
		if !strings.Contains(input, delimiter) {
			continue
		}
		var parts []string
		for _, part := range strings.Split(input, delimiter) {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 1 {
			return strings.Join(parts, separator), nil
		}
	}
	return input, nil
}
