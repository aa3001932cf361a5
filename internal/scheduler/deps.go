package scheduler

import (
	"context"
	"time"

	"github.com/harunnryd/navi/internal/agenda"
	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/logger"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"
)

// Deliverer sends text to an address on a named channel. An empty channel
// means the default one.
type Deliverer interface {
	Deliver(ctx context.Context, channel, address, text string) error
}

// Deps are the collaborators shared by both loops.
type Deps struct {
	Users           *store.UserStore
	Registry        *registry.Registry
	Oracle          oracle.Oracle
	Delivery        Deliverer
	DefaultLocation *time.Location
	Now             func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location(st *store.UserState) *time.Location {
	return agenda.ResolveLocation(st.Timezone(), d.DefaultLocation)
}

var errMapper = naviErrors.NewDefaultErrorMapper()

// eachUser visits every registry entry that resolves to an existing user
// document, one at a time. Malformed entries and entries without a document
// are skipped. Only an unreadable registry fails the pass.
func (d Deps) eachUser(ctx context.Context, visit func(ctx context.Context, entry registry.Entry)) error {
	log := logger.From(ctx)

	entries, malformed, err := d.Registry.Entries()
	if err != nil {
		return err
	}
	for _, m := range malformed {
		log.Warn("Skipping malformed registry entry", "external_id", m.ExternalID, "reason", m.Reason)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			log.Warn("Tick abandoned", "error", ctx.Err())
			return ctx.Err()
		}
		if !d.Users.Exists(entry.UserKey) {
			log.Warn("Skipping registry entry without a user document", "external_id", entry.ExternalID, "user", entry.UserKey)
			continue
		}
		visit(logger.WithUserKey(ctx, entry.UserKey), entry)
	}
	return nil
}

// entryFor finds where to reach userKey.
func (d Deps) entryFor(userKey string) (registry.Entry, error) {
	entries, err := d.Registry.ForUser(userKey)
	if err != nil {
		return registry.Entry{}, err
	}
	if len(entries) == 0 {
		return registry.Entry{}, naviErrors.NotFound("no registry entry for " + userKey)
	}
	return entries[0], nil
}

func (d Deps) deliver(ctx context.Context, entry registry.Entry, text string) error {
	if err := d.Delivery.Deliver(ctx, entry.Channel, entry.ExternalID, text); err != nil {
		logger.From(ctx).Error("Delivery failed",
			"channel", entry.Channel, "address", entry.ExternalID,
			"category", errMapper.Category(err), "error", err)
		return err
	}
	return nil
}

func appendHistory(st *store.UserState, role store.Role, text string, now time.Time) {
	st.ChatHistory = append(st.ChatHistory, store.ChatEntry{
		Role:      role,
		Parts:     []store.Part{{Text: text}},
		Timestamp: store.FormatHistoryTime(now),
	})
}
