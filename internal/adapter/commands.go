package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/idempotency"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"

	"github.com/google/shlex"
)

const (
	helpReply = "Hi! I'm Navi. To connect this chat to your account, run `navi link --user <you>` and send me `/link <code>`.\n\n" +
		"Commands:\n/link <code> - connect this chat\n/unlink - disconnect this chat\n/status - show the linked account"
	unlinkedReply = "I don't know this chat yet. Send /link <code> to connect it to your account."
)

// Commands answers chat commands and records what linked users write, so
// the reflection loop can see when they last spoke.
type Commands struct {
	registry *registry.Registry
	codes    *registry.LinkCodes
	users    *store.UserStore
	seen     *idempotency.Store
	seenTTL  time.Duration
	now      func() time.Time
}

func NewCommands(reg *registry.Registry, codes *registry.LinkCodes, users *store.UserStore) *Commands {
	return &Commands{registry: reg, codes: codes, users: users, now: time.Now}
}

// WithDedup drops events whose platform message id was handled within ttl.
func (c *Commands) WithDedup(seen *idempotency.Store, ttl time.Duration) *Commands {
	c.seen = seen
	c.seenTTL = ttl
	return c
}

// Handle is an EventHandler.
func (c *Commands) Handle(ctx context.Context, evt Event) (string, error) {
	text := strings.TrimSpace(evt.Text)
	if text == "" {
		return "", nil
	}
	if c.duplicate(ctx, evt) {
		return "", nil
	}
	if !strings.HasPrefix(text, "/") {
		return c.record(ctx, evt, text)
	}

	args, err := shlex.Split(text)
	if err != nil || len(args) == 0 {
		return "Sorry, I couldn't read that command.", nil
	}
	name := strings.ToLower(args[0])
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i] // "/link@navi_bot" in group chats
	}

	switch name {
	case "/start", "/help":
		return helpReply, nil
	case "/link":
		if len(args) != 2 {
			return "Usage: /link <code>", nil
		}
		return c.link(ctx, evt, args[1])
	case "/unlink":
		if err := c.registry.Unlink(ctx, evt.ExternalID); err != nil {
			return "", err
		}
		return "This chat is no longer linked.", nil
	case "/status":
		entry, err := c.registry.Lookup(evt.ExternalID)
		if err != nil {
			if naviErrors.IsCategory(err, naviErrors.ErrNotFound) {
				return unlinkedReply, nil
			}
			return "", err
		}
		return fmt.Sprintf("This chat is linked to %s.", entry.UserKey), nil
	default:
		return "Unknown command. Send /help to see what I understand.", nil
	}
}

func (c *Commands) link(ctx context.Context, evt Event, code string) (string, error) {
	userKey, err := c.codes.Redeem(ctx, code, evt.ExternalID)
	switch {
	case errors.Is(err, registry.ErrCodeUnknown):
		return "That code doesn't match any pending link. Check it and try again.", nil
	case errors.Is(err, registry.ErrCodeUsed):
		return "That code has already been used. Run `navi link` for a new one.", nil
	case errors.Is(err, registry.ErrCodeExpired):
		return "That code has expired. Run `navi link` for a new one.", nil
	case err != nil:
		return "", err
	}

	if err := c.registry.Link(ctx, evt.ExternalID, userKey, evt.Channel, "link_code"); err != nil {
		return "", err
	}
	logger.From(ctx).Info("Chat account linked", "channel", evt.Channel, "external_id", evt.ExternalID, "user", userKey)
	return fmt.Sprintf("✅ Linked! I'll check in with you here as %s.", userKey), nil
}

func (c *Commands) record(ctx context.Context, evt Event, text string) (string, error) {
	entry, err := c.registry.Lookup(evt.ExternalID)
	if err != nil {
		if naviErrors.IsCategory(err, naviErrors.ErrNotFound) {
			return unlinkedReply, nil
		}
		return "", err
	}

	now := c.now()
	err = c.users.Update(ctx, entry.UserKey, func(st *store.UserState) error {
		st.ChatHistory = append(st.ChatHistory, store.ChatEntry{
			Role:      store.RoleUser,
			Parts:     []store.Part{{Text: text}},
			Timestamp: store.FormatHistoryTime(now),
		})
		return nil
	})
	return "", err
}

// duplicate marks evt as handled and reports whether it already was. Events
// without a message id are never treated as duplicates.
func (c *Commands) duplicate(ctx context.Context, evt Event) bool {
	if c.seen == nil {
		return false
	}
	id := evt.Metadata["msg_id"]
	if id == "" {
		id = evt.Metadata["ts"]
	}
	if id == "" {
		return false
	}

	seen, err := c.seen.Seen(evt.Channel+":"+evt.Address+":"+id, c.seenTTL)
	if err != nil {
		logger.From(ctx).Warn("Could not persist processed message id", "channel", evt.Channel, "error", err)
	}
	if seen {
		logger.From(ctx).Debug("Dropping redelivered message", "channel", evt.Channel, "id", id)
	}
	return seen
}
