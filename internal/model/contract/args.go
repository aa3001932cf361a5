package contract

import "encoding/json"

// Args decodes the call's JSON input. Input that is not an object yields
// an empty map, since every vendor API wants an object here.
func (tc ToolCall) Args() map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Input), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// ResultObject is a tool result shaped for APIs that only accept objects.
// JSON object results pass through, anything else is put under "result".
func ResultObject(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil || obj == nil {
		return map[string]any{"result": content}
	}
	return obj
}

// Schema returns the parameter schema, or an empty object schema.
func (t ToolDef) Schema() map[string]interface{} {
	if t.Parameters != nil {
		return t.Parameters
	}
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

// Properties and Required pull the two schema keys some vendors take
// separately.
func (t ToolDef) Properties() map[string]interface{} {
	if props, ok := t.Parameters["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}

func (t ToolDef) Required() []string {
	switch req := t.Parameters["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
