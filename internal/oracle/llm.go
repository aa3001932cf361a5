package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/model"
	"github.com/harunnryd/navi/internal/model/contract"
	"github.com/harunnryd/navi/internal/store"
	"github.com/harunnryd/navi/internal/tool"
)

const toolSource = "oracle"

const replyFormat = `Every reply must use exactly this structure:

<strategize>
Your private reasoning. Always present, never shown to the user.
</strategize>

<message>
What the user will read. Leave this section out entirely to stay silent.
</message>

Write nothing outside these tags.`

// LLMOracle consults a routed chat model and lets it call the agenda tools
// against the session's state.
type LLMOracle struct {
	router        model.ModelRouter
	runner        *tool.Runner
	model         string
	persona       string
	maxToolTurns  int
	historyWindow int
	toolLogCap    int
	timeout       time.Duration
}

func NewLLMOracle(router model.ModelRouter, runner *tool.Runner, modelName string, cfg config.OracleConfig) (*LLMOracle, error) {
	timeout, err := config.DurationOrDefault(cfg.Timeout, config.DefaultOracleTimeout)
	if err != nil {
		return nil, fmt.Errorf("oracle timeout: %w", err)
	}
	o := &LLMOracle{
		router:        router,
		runner:        runner,
		model:         modelName,
		persona:       cfg.Persona,
		maxToolTurns:  cfg.MaxToolTurns,
		historyWindow: cfg.HistoryWindow,
		toolLogCap:    cfg.ToolLogCap,
		timeout:       timeout,
	}
	if o.persona == "" {
		o.persona = config.DefaultOraclePersona
	}
	if o.maxToolTurns < 0 {
		o.maxToolTurns = 0
	}
	if o.historyWindow <= 0 {
		o.historyWindow = config.DefaultOracleHistoryWindow
	}
	if o.toolLogCap <= 0 {
		o.toolLogCap = config.DefaultOracleToolLogCap
	}
	return o, nil
}

// Consult runs up to maxToolTurns rounds of tool calls and parses the final
// text. Tool failures are reported back to the model, not returned.
func (o *LLMOracle) Consult(ctx context.Context, s *Session, prompt string) (*Result, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	log := logger.From(ctx)

	env := &tool.Env{UserKey: s.UserKey, State: s.State, Now: s.Now, Location: s.Location}
	messages := transcript(s.State.ChatHistory, o.historyWindow)
	messages = append(messages, contract.Message{Role: contract.RoleUser, Content: prompt})

	var tools []contract.ToolDef
	if o.runner != nil && o.maxToolTurns > 0 {
		tools = o.runner.Registry().Definitions()
	}

	result := &Result{}
	for turn := 0; ; turn++ {
		resp, err := o.router.Route(ctx, o.model, contract.CompletionRequest{
			System:   o.systemPrompt(s),
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 || o.runner == nil || turn >= o.maxToolTurns {
			if len(resp.ToolCalls) > 0 {
				log.Warn("Tool turn limit reached, ignoring further calls", "turns", turn, "pending", len(resp.ToolCalls))
			}
			result.Raw = resp.Content
			result.Reasoning, result.UserMessage = ParseReply(resp.Content)
			return result, nil
		}

		messages = append(messages, contract.Message{Role: contract.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		execs := make([]store.ToolExecution, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			rec, _ := o.runner.Execute(ctx, env, call.Name, json.RawMessage(call.Input), toolSource)
			execs = append(execs, rec)
			messages = append(messages, contract.Message{
				Role:       contract.RoleTool,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Content:    rec.Result,
			})
		}
		result.ToolExecutions = append(result.ToolExecutions, execs...)
		appendToolLog(s.State, execs, o.toolLogCap)
		s.Location = env.Location
	}
}

func (o *LLMOracle) systemPrompt(s *Session) string {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.WriteString(o.persona)
	b.WriteString("\n\n")
	b.WriteString(replyFormat)
	fmt.Fprintf(&b, "\n\nCurrent time for the user: %s (%s).", s.Now.In(loc).Format("2006-01-02 15:04 Monday"), loc.String())
	if stage := s.State.ConversationStage; stage != "" {
		fmt.Fprintf(&b, "\nConversation stage: %s.", stage)
	}
	return b.String()
}
