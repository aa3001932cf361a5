package store

import (
	"encoding/json"
	"strings"
	"time"
)

// HistoryTimeLayout is the timestamp written on new chat entries. Values
// carry no zone and are server-local wall time, as earlier documents are.
const HistoryTimeLayout = "2006-01-02T15:04:05"

func FormatHistoryTime(t time.Time) string {
	return t.In(time.Local).Format(HistoryTimeLayout)
}

// ParseHistoryTime reads entry timestamps. Older entries carry fractional
// seconds or a zone offset; zone-less values are server-local.
func ParseHistoryTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
}

// LastEntryTime returns the timestamp of the newest entry with role, or
// false when none carries a readable one.
func LastEntryTime(history []ChatEntry, role Role) (time.Time, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != role || history[i].Timestamp == "" {
			continue
		}
		if t, err := ParseHistoryTime(history[i].Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanHistory keeps only entries that have a non-empty string role and a list of
// non-empty part objects. Parts that do not decode, or decode to nothing,
// are dropped; an entry left with no parts is dropped with them.
func cleanHistory(raw json.RawMessage) (kept []ChatEntry, dropped int) {
	kept = []ChatEntry{}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return kept, 0
	}

	for _, rawEntry := range entries {
		entry, ok := cleanEntry(rawEntry)
		if !ok {
			dropped++
			continue
		}
		kept = append(kept, entry)
	}
	return kept, dropped
}

func cleanEntry(raw json.RawMessage) (ChatEntry, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return ChatEntry{}, false
	}

	var entry ChatEntry
	roleRaw, ok := fields["role"]
	if !ok || json.Unmarshal(roleRaw, &entry.Role) != nil || entry.Role == "" {
		return ChatEntry{}, false
	}

	partsRaw, ok := fields["parts"]
	if !ok {
		return ChatEntry{}, false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(partsRaw, &parts); err != nil || parts == nil {
		return ChatEntry{}, false
	}

	for _, rawPart := range parts {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rawPart, &obj); err != nil || len(obj) == 0 {
			continue
		}
		var part Part
		if err := json.Unmarshal(rawPart, &part); err != nil {
			continue
		}
		if part.Text == "" && part.FunctionCall == nil {
			continue
		}
		entry.Parts = append(entry.Parts, part)
	}
	if len(entry.Parts) == 0 {
		return ChatEntry{}, false
	}

	if tsRaw, ok := fields["timestamp"]; ok {
		// A non-string timestamp is discarded rather than failing the entry.
		_ = json.Unmarshal(tsRaw, &entry.Timestamp)
	}
	return entry, true
}
