package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	toolcore "github.com/harunnryd/navi/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("get_current_datetime", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &DateTimeTool{}, nil
	})
	toolcore.RegisterBuiltin("set_user_timezone", func(toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &SetTimezoneTool{}, nil
	})
}

// DateTimeTool reports the current time in the user's zone.
type DateTimeTool struct{}

func (t *DateTimeTool) Name() string { return "get_current_datetime" }

func (t *DateTimeTool) Description() string {
	return "Get the current date and time in the user's timezone. Call this before scheduling anything."
}

func (t *DateTimeTool) Parameters() map[string]interface{} {
	return toolcore.Object(nil)
}

func (t *DateTimeTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	loc := env.Location
	if loc == nil {
		loc = time.Local
	}
	now := env.Now.In(loc)
	return fmt.Sprintf("Current date and time: %s (%s, %s timezone)", now.Format("2006-01-02 15:04"), now.Format("Monday"), loc.String()), nil
}

type SetTimezoneTool struct{}

func (t *SetTimezoneTool) Name() string { return "set_user_timezone" }

func (t *SetTimezoneTool) Description() string {
	return "Store the user's IANA timezone, for example Europe/London."
}

func (t *SetTimezoneTool) Parameters() map[string]interface{} {
	return toolcore.Object(map[string]interface{}{
		"timezone": toolcore.Prop("string", "IANA timezone name"),
	}, "timezone")
}

func (t *SetTimezoneTool) Execute(ctx context.Context, env *toolcore.Env, input json.RawMessage) (string, error) {
	var args struct {
		Timezone string `json:"timezone"`
	}
	if err := decode(input, &args); err != nil {
		return "", err
	}
	name := strings.TrimSpace(args.Timezone)
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" {
		return "", naviErrors.InvalidInput(fmt.Sprintf("unknown timezone %q", args.Timezone))
	}
	env.State.SetTimezone(name)
	env.Location = loc
	return fmt.Sprintf("Timezone set to %s", name), nil
}
