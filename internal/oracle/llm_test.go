package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/model/contract"
	"github.com/harunnryd/navi/internal/store"
	"github.com/harunnryd/navi/internal/tool"
	_ "github.com/harunnryd/navi/internal/tool/builtin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	args := m.Called(ctx, model, req)
	resp, _ := args.Get(0).(*contract.CompletionResponse)
	return resp, args.Error(1)
}

func (m *mockRouter) ListModels() []string             { return []string{"test"} }
func (m *mockRouter) Health(ctx context.Context) error { return nil }

func newTestOracle(t *testing.T, router *mockRouter, cfg config.OracleConfig) *LLMOracle {
	t.Helper()
	registry, err := tool.NewBuiltinRegistry(tool.BuiltinOptions{})
	require.NoError(t, err)
	o, err := NewLLMOracle(router, tool.NewRunner(registry), "test", cfg)
	require.NoError(t, err)
	return o
}

func newSession() *Session {
	st := store.NewUserState()
	st.Goals = append(st.Goals, store.Goal{GoalID: 1, Title: "Learn Go", GoalLog: []string{}})
	goalID := 1
	st.Tasks = append(st.Tasks, store.Task{TaskID: 1, GoalID: &goalID, Title: "Tour of Go", Status: store.TaskPending})
	st.Metadata = store.Metadata{NextGoalID: 2, NextTaskID: 2, NextProgressTrackerID: 1}
	return &Session{
		UserKey:  "a@example.com",
		State:    st,
		Now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Location: time.UTC,
	}
}

func TestConsultParsesFinalReply(t *testing.T) {
	router := &mockRouter{}
	router.On("Route", mock.Anything, "test", mock.MatchedBy(func(req contract.CompletionRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return strings.Contains(req.System, "<strategize>") && last.Role == contract.RoleUser && last.Content == "check in"
	})).Return(&contract.CompletionResponse{Content: "<strategize>ok</strategize><message>Hello!</message>"}, nil).Once()

	o := newTestOracle(t, router, config.OracleConfig{MaxToolTurns: 3})
	res, err := o.Consult(context.Background(), newSession(), "check in")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Reasoning)
	require.NotNil(t, res.UserMessage)
	assert.Equal(t, "Hello!", *res.UserMessage)
	assert.Empty(t, res.ToolExecutions)
	router.AssertExpectations(t)
}

func TestConsultRunsToolsAgainstSessionState(t *testing.T) {
	router := &mockRouter{}
	router.On("Route", mock.Anything, "test", mock.MatchedBy(func(req contract.CompletionRequest) bool {
		return req.Messages[len(req.Messages)-1].Role == contract.RoleUser
	})).Return(&contract.CompletionResponse{ToolCalls: []*contract.ToolCall{
		{ID: "c1", Name: "update_task_status", Input: `{"task_id": 1, "status": "COMPLETED"}`},
		{ID: "c2", Name: "no_such_tool", Input: `{}`},
	}}, nil).Once()
	router.On("Route", mock.Anything, "test", mock.MatchedBy(func(req contract.CompletionRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return last.Role == contract.RoleTool && last.ToolCallID == "c2" && strings.HasPrefix(last.Content, "ERROR")
	})).Return(&contract.CompletionResponse{Content: "<strategize>done</strategize>"}, nil).Once()

	o := newTestOracle(t, router, config.OracleConfig{MaxToolTurns: 3})
	s := newSession()
	res, err := o.Consult(context.Background(), s, "reflect")
	require.NoError(t, err)

	assert.Equal(t, []string{"update_task_status", "no_such_tool"}, res.ToolNames())
	assert.Nil(t, res.UserMessage)
	assert.Equal(t, store.TaskCompleted, s.State.Tasks[0].Status)
	assert.Equal(t, store.Percent(100), s.State.Goals[0].BotAssessmentPct)
	assert.Len(t, s.State.ToolExecutionLog, 2)
	router.AssertExpectations(t)
}

func TestConsultStopsAtToolTurnLimit(t *testing.T) {
	router := &mockRouter{}
	router.On("Route", mock.Anything, "test", mock.Anything).Return(&contract.CompletionResponse{
		Content:   "<strategize>still going</strategize>",
		ToolCalls: []*contract.ToolCall{{ID: "c", Name: "list_goals", Input: `{}`}},
	}, nil)

	o := newTestOracle(t, router, config.OracleConfig{MaxToolTurns: 2})
	res, err := o.Consult(context.Background(), newSession(), "loop")
	require.NoError(t, err)
	assert.Len(t, res.ToolExecutions, 2)
	assert.Equal(t, "still going", res.Reasoning)
	router.AssertNumberOfCalls(t, "Route", 3)
}

func TestConsultPropagatesRouterErrors(t *testing.T) {
	router := &mockRouter{}
	router.On("Route", mock.Anything, "test", mock.Anything).Return(nil, errors.New("boom"))

	o := newTestOracle(t, router, config.OracleConfig{})
	_, err := o.Consult(context.Background(), newSession(), "x")
	assert.EqualError(t, err, "boom")
}

func TestTranscriptWindowAndRoles(t *testing.T) {
	var history []store.ChatEntry
	for i := 0; i < 5; i++ {
		history = append(history, store.ChatEntry{Role: store.RoleUser, Parts: []store.Part{{Text: "u"}}})
		history = append(history, store.ChatEntry{Role: store.RoleModel, Parts: []store.Part{{Text: "m"}}})
	}
	history = append(history, store.ChatEntry{Role: store.RoleModel, Parts: []store.Part{{FunctionCall: &store.FunctionCall{Name: "list_goals"}}}})

	msgs := transcript(history, 4)
	require.Len(t, msgs, 3, "function-call-only entries carry no text")
	assert.Equal(t, contract.RoleAssistant, msgs[0].Role)
	assert.Equal(t, contract.RoleUser, msgs[1].Role)
	assert.Len(t, history, 11, "history is never modified")
}

func TestAppendToolLogIsBounded(t *testing.T) {
	st := store.NewUserState()
	for i := 0; i < 7; i++ {
		appendToolLog(st, []store.ToolExecution{{Tool: "t", Result: string(rune('a' + i))}}, 5)
	}
	require.Len(t, st.ToolExecutionLog, 5)
	assert.Equal(t, "c", st.ToolExecutionLog[0].Result)
	assert.Equal(t, "g", st.ToolExecutionLog[4].Result)
}
