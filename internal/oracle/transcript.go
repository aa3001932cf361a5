package oracle

import (
	"github.com/harunnryd/navi/internal/model/contract"
	"github.com/harunnryd/navi/internal/store"
)

// transcript converts the newest window entries of history into model
// messages. Entries without text are skipped; history itself is not touched.
func transcript(history []store.ChatEntry, window int) []contract.Message {
	start := 0
	if window > 0 && len(history) > window {
		start = len(history) - window
	}

	messages := make([]contract.Message, 0, len(history)-start+1)
	for _, entry := range history[start:] {
		text := entry.Text()
		if text == "" {
			continue
		}
		role := contract.RoleUser
		if entry.Role == store.RoleModel {
			role = contract.RoleAssistant
		}
		messages = append(messages, contract.Message{Role: role, Content: text})
	}
	return messages
}

// appendToolLog records executions and keeps only the newest limit entries.
func appendToolLog(st *store.UserState, execs []store.ToolExecution, limit int) {
	if len(execs) == 0 {
		return
	}
	st.ToolExecutionLog = append(st.ToolExecutionLog, execs...)
	if limit > 0 && len(st.ToolExecutionLog) > limit {
		st.ToolExecutionLog = append([]store.ToolExecution(nil), st.ToolExecutionLog[len(st.ToolExecutionLog)-limit:]...)
	}
}
