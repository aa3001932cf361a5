package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ValidateInput checks model-supplied arguments against a tool's parameter
// schema. Only the keywords the built-ins use are understood: type,
// properties, required, items and enum. Unknown fields pass, and a null
// optional field counts as absent, as does an empty argument string.
func ValidateInput(schema map[string]interface{}, input json.RawMessage) error {
	if len(bytes.TrimSpace(input)) == 0 {
		return checkObject("", schema, nil)
	}
	var args map[string]interface{}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	return checkObject("", schema, args)
}

func checkObject(path string, schema map[string]interface{}, obj map[string]interface{}) error {
	for _, field := range stringList(schema["required"]) {
		if obj[field] == nil {
			return fmt.Errorf("missing required field: %s", join(path, field))
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for key, value := range obj {
		sub, ok := props[key].(map[string]interface{})
		if !ok || value == nil {
			continue
		}
		if err := checkValue(join(path, key), sub, value); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(path string, schema map[string]interface{}, value interface{}) error {
	kind, _ := schema["type"].(string)
	mismatch := func() error {
		return fmt.Errorf("field '%s' expected %s, got %s", path, kind, jsonKind(value))
	}

	switch kind {
	case "string":
		s, ok := value.(string)
		if !ok {
			return mismatch()
		}
		if allowed := stringList(schema["enum"]); len(allowed) > 0 && !containsFold(allowed, s) {
			return fmt.Errorf("field '%s' must be one of %s, got %q", path, strings.Join(allowed, ", "), s)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return mismatch()
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return mismatch()
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return mismatch()
		}
	case "array":
		items, ok := value.([]interface{})
		if !ok {
			return mismatch()
		}
		if itemSchema, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range items {
				if err := checkValue(fmt.Sprintf("%s[%d]", path, i), itemSchema, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return mismatch()
		}
		return checkObject(path, schema, obj)
	}
	return nil
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// containsFold ignores case; status names arrive in whatever case the model
// picked and are normalized later.
func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
