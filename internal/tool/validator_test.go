package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateInput(t *testing.T) {
	schema := Object(map[string]interface{}{
		"title":    Prop("string", "title"),
		"goal_id":  Prop("integer", "goal"),
		"weight":   Prop("number", "weight"),
		"status":   Enum("status", "PENDING", "COMPLETED"),
		"tags":     map[string]interface{}{"type": "array", "items": Prop("string", "tag")},
		"reminder": Object(map[string]interface{}{"at": Prop("string", "when")}, "at"),
	}, "title")

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "minimal", input: `{"title": "Run"}`},
		{name: "everything", input: `{"title": "Run", "goal_id": 2, "weight": 0.5, "status": "completed", "tags": ["a"], "reminder": {"at": "09:00"}}`},
		{name: "integer sent as float", input: `{"title": "Run", "goal_id": 3.0}`},
		{name: "null optional", input: `{"title": "Run", "goal_id": null}`},
		{name: "unknown field", input: `{"title": "Run", "mood": "great"}`},
		{name: "missing required", input: `{"goal_id": 1}`, wantErr: "missing required field: title"},
		{name: "null required", input: `{"title": null}`, wantErr: "missing required field: title"},
		{name: "fractional integer", input: `{"title": "Run", "goal_id": 1.5}`, wantErr: "expected integer"},
		{name: "string for integer", input: `{"title": "Run", "goal_id": "1"}`, wantErr: "got string"},
		{name: "enum miss", input: `{"title": "Run", "status": "DONE"}`, wantErr: "must be one of PENDING, COMPLETED"},
		{name: "bad array item", input: `{"title": "Run", "tags": [1]}`, wantErr: "tags[0]"},
		{name: "nested required", input: `{"title": "Run", "reminder": {}}`, wantErr: "reminder.at"},
		{name: "not an object", input: `[1, 2]`, wantErr: "invalid JSON input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(schema, json.RawMessage(tt.input))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateInput_EmptyObjectAgainstEmptySchema(t *testing.T) {
	assert.NoError(t, ValidateInput(Object(nil), json.RawMessage(`{}`)))
	assert.NoError(t, ValidateInput(Object(nil), json.RawMessage(`null`)))
	assert.NoError(t, ValidateInput(Object(nil), nil))
	assert.Error(t, ValidateInput(Object(nil, "x"), json.RawMessage(" ")))
}
