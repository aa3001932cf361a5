package render

import (
	"encoding/json"

	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// FormatState prints the document exactly as it is stored.
func (f *JSONFormatter) FormatState(userKey string, st *store.UserState) (string, error) {
	if st == nil {
		return "null", nil
	}
	data, err := store.EncodeState(st)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatGoals(rows []agenda.GoalOverview) (string, error) {
	return marshalIndent(goalRows(rows))
}

func (f *JSONFormatter) FormatEntries(entries []registry.Entry) (string, error) {
	return marshalIndent(entryRows(entries))
}

func marshalIndent(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
