package render

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// FormatState goes through the JSON encoding first so the YAML keys match
// the on-disk document, including keys this package does not model.
func (f *YAMLFormatter) FormatState(userKey string, st *store.UserState) (string, error) {
	if st == nil {
		return "null", nil
	}
	data, err := store.EncodeState(st)
	if err != nil {
		return "", err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	return marshalYAML(generic)
}

func (f *YAMLFormatter) FormatGoals(rows []agenda.GoalOverview) (string, error) {
	return marshalYAML(goalRows(rows))
}

func (f *YAMLFormatter) FormatEntries(entries []registry.Entry) (string, error) {
	return marshalYAML(entryRows(entries))
}

func marshalYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
