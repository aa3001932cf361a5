package adapter

import (
	"context"
)

// Event is one inbound chat message from an external platform.
type Event struct {
	Channel    string // adapter name, e.g. "telegram"
	ExternalID string // platform user id, the registry key
	Address    string // where a reply should go (chat or channel id)
	UserName   string
	Text       string
	Metadata   map[string]string
}

// EventHandler processes an inbound event and returns an optional reply.
// An empty reply sends nothing.
type EventHandler func(ctx context.Context, evt Event) (string, error)

type endpoint interface {
	Name() string
	Health(ctx context.Context) error
}

// InputAdapter receives events. Start must return once ctx is done or the
// listener could not be set up.
type InputAdapter interface {
	endpoint
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutputAdapter delivers plain text to a platform address (chat id, channel
// id). Failures are returned to the caller, which logs and swallows them.
type OutputAdapter interface {
	endpoint
	Send(ctx context.Context, address string, text string) error
}
