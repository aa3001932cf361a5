package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/navi/internal/concurrency"
	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/errors"
)

type RuntimeAdapterOptions struct {
	IncludeCLI  bool
	CLIOutput   io.Writer
	IncludeNull bool
}

// RuntimeManager owns the configured adapters and routes deliveries to
// them by channel name.
type RuntimeManager struct {
	mu             sync.RWMutex
	inputs         []InputAdapter
	outputs        map[string]OutputAdapter
	defaultChannel string
	sendTimeout    time.Duration
	started        bool
}

func NewRuntimeManager(cfg config.AdaptersConfig, delivery config.DeliveryConfig, eventHandler EventHandler, opts RuntimeAdapterOptions) (*RuntimeManager, error) {
	sendTimeout, err := config.DurationOrDefault(delivery.SendTimeout, config.DefaultDeliverySendTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse delivery send timeout: %w", err)
	}
	defaultChannel := strings.ToLower(strings.TrimSpace(delivery.DefaultChannel))
	if defaultChannel == "" {
		defaultChannel = config.DefaultDeliveryChannel
	}

	m := &RuntimeManager{
		outputs:        make(map[string]OutputAdapter),
		defaultChannel: defaultChannel,
		sendTimeout:    sendTimeout,
	}

	if opts.IncludeCLI {
		m.Register(NewCLIAdapter(opts.CLIOutput))
	}
	if opts.IncludeNull {
		m.Register(NewNullAdapter("null"))
	}

	if cfg.Slack.Enabled {
		if strings.TrimSpace(cfg.Slack.BotToken) == "" {
			return nil, fmt.Errorf("adapters.slack.bot_token is required when slack adapter is enabled")
		}

		slackAdapter := NewSlackAdapter(cfg.Slack.Port, cfg.Slack.SigningSecret, cfg.Slack.BotToken, eventHandler)
		m.inputs = append(m.inputs, slackAdapter)
		m.Register(slackAdapter)
	}

	if cfg.Telegram.Enabled {
		token := strings.TrimSpace(cfg.Telegram.BotToken)
		if token == "" {
			return nil, fmt.Errorf("adapters.telegram.bot_token is required when telegram adapter is enabled")
		}

		telegramAdapter := NewTelegramAdapter(token, cfg.Telegram.ParseMode, cfg.Telegram.UpdateTimeout, eventHandler)
		m.inputs = append(m.inputs, telegramAdapter)
		m.Register(telegramAdapter)
	}

	return m, nil
}

// Register adds or replaces the output adapter for its channel name.
func (m *RuntimeManager) Register(out OutputAdapter) {
	if out == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(out.Name()))
	if name == "" {
		return
	}
	m.mu.Lock()
	m.outputs[name] = out
	m.mu.Unlock()
}

func (m *RuntimeManager) DefaultChannel() string {
	return m.defaultChannel
}

// Channels lists the registered output channel names.
func (m *RuntimeManager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.outputs))
	for name := range m.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deliver sends text through the adapter for channel, or the default
// channel when channel is empty. Each attempt is bounded by the send
// timeout and never retried.
func (m *RuntimeManager) Deliver(ctx context.Context, channel, address, text string) error {
	name := strings.ToLower(strings.TrimSpace(channel))
	if name == "" {
		name = m.defaultChannel
	}

	m.mu.RLock()
	out, ok := m.outputs[name]
	m.mu.RUnlock()
	if !ok {
		return errors.NotFound(fmt.Sprintf("no delivery adapter for channel %q", name))
	}

	if m.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.sendTimeout)
		defer cancel()
	}
	return out.Send(ctx, address, text)
}

func (m *RuntimeManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	for _, input := range inputs {
		adapter := input
		concurrency.Go(adapter.Name(), func() error {
			slog.Info("Starting input adapter", "adapter", adapter.Name())
			err := adapter.Start(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("Input adapter stopped with error", "adapter", adapter.Name(), "error", err)
			}
			return err
		})
	}
}

func (m *RuntimeManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	var errs []string
	for _, input := range inputs {
		if err := input.Stop(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", input.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop adapters: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m *RuntimeManager) Health(ctx context.Context) error {
	m.mu.RLock()
	outputs := make([]OutputAdapter, 0, len(m.outputs))
	for _, out := range m.outputs {
		outputs = append(outputs, out)
	}
	m.mu.RUnlock()

	for _, output := range outputs {
		if err := output.Health(ctx); err != nil {
			return fmt.Errorf("output adapter %s unhealthy: %w", output.Name(), err)
		}
	}
	return nil
}
