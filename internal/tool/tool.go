package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/navi/internal/model/contract"
	"github.com/harunnryd/navi/internal/store"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolFailed   = errors.New("tool execution failed")
)

// Env is the user a tool call acts on. Tools mutate State in place; the
// caller owns persisting it.
type Env struct {
	UserKey  string
	State    *store.UserState
	Now      time.Time
	Location *time.Location
}

// Tool is one capability offered to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, env *Env, input json.RawMessage) (string, error)
}

// Registry holds all available tools.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	name := NormalizeToolName(t.Name())
	if name == "" {
		panic("tool: empty tool name")
	}

	r.tools[name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[NormalizeToolName(name)]
	return t, ok
}

// Definitions lists every tool in name order.
func (r *Registry) Definitions() []contract.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]contract.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, contract.ToolDef{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}

// Object builds a JSON schema object from property schemas.
func Object(properties map[string]interface{}, required ...string) map[string]interface{} {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func Prop(kind, description string) map[string]interface{} {
	return map[string]interface{}{"type": kind, "description": description}
}

// Enum is a string property limited to values. Matching ignores case.
func Enum(description string, values ...string) map[string]interface{} {
	p := Prop("string", description)
	p["enum"] = values
	return p
}
