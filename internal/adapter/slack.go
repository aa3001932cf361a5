package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/harunnryd/navi/internal/concurrency"
	naviErrors "github.com/harunnryd/navi/internal/errors"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const slackEventsPath = "/slack/events"

// SlackAdapter delivers through chat.postMessage and, when a signing
// secret is set, receives direct messages from the Events API.
type SlackAdapter struct {
	signingSecret string
	eventHandler  EventHandler
	port          int
	client        *slack.Client

	mu     sync.Mutex
	server *http.Server
}

func NewSlackAdapter(port int, signingSecret, botToken string, eventHandler EventHandler) *SlackAdapter {
	return &SlackAdapter{
		signingSecret: strings.TrimSpace(signingSecret),
		eventHandler:  eventHandler,
		port:          port,
		client:        slack.New(botToken),
	}
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

// Start binds the events endpoint and serves it in the background until
// ctx is done or Stop is called. A port that cannot be bound is returned
// here rather than logged later.
func (s *SlackAdapter) Start(ctx context.Context) error {
	if s.signingSecret == "" {
		slog.Info("Slack signing secret not set, inbound events disabled")
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("slack events listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(slackEventsPath, s.handleEvents)
	server := &http.Server{Handler: mux}

	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	slog.Info("Slack Adapter listening", "addr", ln.Addr().String(), "path", slackEventsPath)
	concurrency.Go("slack-events", func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Slack server failed", "error", err)
			return err
		}
		return nil
	})
	concurrency.Go("slack-events-shutdown", func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	return nil
}

func (s *SlackAdapter) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Send posts text to a channel or user id.
func (s *SlackAdapter) Send(ctx context.Context, address string, text string) error {
	if _, _, err := s.client.PostMessageContext(ctx, address, slack.MsgOptionText(text, false)); err != nil {
		return naviErrors.WrapWithCategory(err, "send slack message", naviErrors.ErrTransient)
	}
	slog.Debug("Slack message sent", "channel", address)
	return nil
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return naviErrors.WrapWithCategory(err, "slack auth test", naviErrors.ErrTransient)
	}
	return nil
}

// verify checks the request signature and returns the body, or the HTTP
// status to answer with.
func (s *SlackAdapter) verify(r *http.Request) ([]byte, int) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, http.StatusBadRequest
	}
	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		return nil, http.StatusBadRequest
	}
	if _, err := sv.Write(body); err != nil {
		return nil, http.StatusInternalServerError
	}
	if err := sv.Ensure(); err != nil {
		return nil, http.StatusUnauthorized
	}
	return body, http.StatusOK
}

// handleEvents acks within Slack's three second window and handles the
// message afterwards, since a reply may wait on the model.
func (s *SlackAdapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, status := s.verify(r)
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	outer, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch outer.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
		if evt, ok := slackMessage(outer.InnerEvent.Data); ok {
			ctx := context.WithoutCancel(r.Context())
			concurrency.Go("slack-dispatch", func() error {
				s.dispatch(ctx, evt)
				return nil
			})
		}
	}
	w.WriteHeader(http.StatusOK)
}

// slackMessage keeps plain user messages. Bot posts, including our own
// deliveries, and subtyped events such as edits are ignored.
func slackMessage(data interface{}) (Event, bool) {
	ev, ok := data.(*slackevents.MessageEvent)
	if !ok || ev.BotID != "" || ev.SubType != "" || strings.TrimSpace(ev.Text) == "" {
		return Event{}, false
	}
	return Event{
		Channel:    "slack",
		ExternalID: ev.User,
		Address:    ev.Channel,
		Text:       ev.Text,
		Metadata:   map[string]string{"ts": ev.TimeStamp, "msg_id": ev.ClientMsgID},
	}, true
}

func (s *SlackAdapter) dispatch(ctx context.Context, evt Event) {
	if s.eventHandler == nil {
		return
	}
	reply, err := s.eventHandler(ctx, evt)
	if err != nil {
		slog.Error("Failed to handle Slack event", "external_id", evt.ExternalID, "error", err)
	}
	if strings.TrimSpace(reply) == "" {
		return
	}
	if err := s.Send(ctx, evt.Address, reply); err != nil {
		slog.Warn("Failed to send Slack reply", "channel", evt.Address, "error", err)
	}
}
