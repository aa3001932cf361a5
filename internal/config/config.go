package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/navi/internal/pathutil"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	Store     StoreConfig     `koanf:"store"`
	Models    ModelsConfig    `koanf:"models"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Delivery  DeliveryConfig  `koanf:"delivery"`
	Adapters  AdaptersConfig  `koanf:"adapters"`
	Daemon    DaemonConfig    `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// DataConfig locates the per-user documents and the channel registry.
type DataConfig struct {
	Root         string `koanf:"root"`
	RegistryFile string `koanf:"registry_file"`
	LinkCodeFile string `koanf:"link_code_file"`
	LinkCodeTTL  string `koanf:"link_code_ttl"`
}

type StoreConfig struct {
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name           string `koanf:"name"`
	Provider       string `koanf:"provider"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	RequestTimeout string `koanf:"request_timeout"`
}

// OracleConfig tunes the model-backed reasoning oracle.
type OracleConfig struct {
	Persona       string `koanf:"persona"`
	MaxToolTurns  int    `koanf:"max_tool_turns"`
	HistoryWindow int    `koanf:"history_window"`
	Timeout       string `koanf:"timeout"`
	ToolLogCap    int    `koanf:"tool_log_cap"`

	// DisabledTools hides built-in tools from the model.
	DisabledTools []string `koanf:"disabled_tools"`
}

type SchedulerConfig struct {
	DefaultTimezone string           `koanf:"default_timezone"`
	ShutdownTimeout string           `koanf:"shutdown_timeout"`
	Checkin         CheckinConfig    `koanf:"checkin"`
	Reflection      ReflectionConfig `koanf:"reflection"`
}

type CheckinConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Schedule      string `koanf:"schedule"`
	RunOnStart    bool   `koanf:"run_on_start"`
	MaxMessageLen int    `koanf:"max_message_len"`
}

type ReflectionConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Schedule       string `koanf:"schedule"`
	RunOnStart     bool   `koanf:"run_on_start"`
	MaxMessageLen  int    `koanf:"max_message_len"`
	MaxDeliveryLen int    `koanf:"max_delivery_len"`
	HistoryCap     int    `koanf:"history_cap"`
}

type DeliveryConfig struct {
	DefaultChannel string `koanf:"default_channel"`
	SendTimeout    string `koanf:"send_timeout"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
	ParseMode     string `koanf:"parse_mode"`
}

type DaemonConfig struct {
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
}

const (
	DefaultServerPort                   = 8080
	DefaultServerLogLevel               = "info"
	DefaultServerReadTimeout            = "10s"
	DefaultServerWriteTimeout           = "10s"
	DefaultServerIdleTimeout            = "60s"
	DefaultServerShutdownTimeout        = "5s"
	DefaultDataRegistryFile             = "telegram_mappings.json"
	DefaultDataLinkCodeFile             = "link_codes.json"
	DefaultDataLinkCodeTTL              = "30m"
	DefaultStoreLockTimeout             = "30s"
	DefaultStoreLockRetry               = "100ms"
	DefaultStoreLockMaxRetry            = 300
	DefaultModelDefault                 = "gemini-2.5-flash"
	DefaultModelFallback                = "gpt-4o-mini"
	DefaultModelMaxFallbackAttempts     = 2
	DefaultModelRequestTimeout          = "60s"
	DefaultOpenAIBaseURL                = "https://api.openai.com/v1"
	DefaultOllamaBaseURL                = "http://localhost:11434/v1"
	DefaultOllamaAPIKey                 = "ollama"
	DefaultOraclePersona                = "You are Navi, a warm and concise personal productivity coach. You help the user make steady progress on their goals and tasks."
	DefaultOracleMaxToolTurns           = 5
	DefaultOracleHistoryWindow          = 100
	DefaultOracleTimeout                = "90s"
	DefaultOracleToolLogCap             = 100
	DefaultSchedulerShutdownTimeout     = "30s"
	DefaultCheckinEnabled               = true
	DefaultCheckinSchedule              = "@every 5m"
	DefaultCheckinMaxMessageLen         = 4000
	DefaultReflectionEnabled            = true
	DefaultReflectionSchedule           = "@every 1h"
	DefaultReflectionMaxMessageLen      = 800
	DefaultReflectionMaxDeliveryLen     = 1000
	DefaultReflectionHistoryCap         = 24
	DefaultDeliveryChannel              = "telegram"
	DefaultDeliverySendTimeout          = "15s"
	DefaultSlackPort                    = 3000
	DefaultTelegramUpdateTimeout        = 60
	DefaultTelegramParseMode            = "Markdown"
	DefaultDaemonShutdownTimeout        = "30s"
	DefaultDaemonHealthCheckInterval    = "30s"
	DefaultDaemonStartupShutdownTimeout = "10s"
)

// Load resolves configuration from defaults, the YAML config file, NAVI_
// environment variables and finally command-line flags.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// A local .env only seeds the process environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("Ignoring unreadable .env", "error", err)
	}

	defaults := map[string]interface{}{
		"server.port":                  DefaultServerPort,
		"server.log_level":             DefaultServerLogLevel,
		"server.read_timeout":          DefaultServerReadTimeout,
		"server.write_timeout":         DefaultServerWriteTimeout,
		"server.idle_timeout":          DefaultServerIdleTimeout,
		"server.shutdown_timeout":      DefaultServerShutdownTimeout,
		"data.root":                    filepath.Join(os.Getenv("HOME"), ".navi", "data"),
		"data.registry_file":           DefaultDataRegistryFile,
		"data.link_code_file":          DefaultDataLinkCodeFile,
		"data.link_code_ttl":           DefaultDataLinkCodeTTL,
		"store.lock_timeout":           DefaultStoreLockTimeout,
		"store.lock_retry":             DefaultStoreLockRetry,
		"store.lock_max_retry":         DefaultStoreLockMaxRetry,
		"models.default":               DefaultModelDefault,
		"models.fallback":              DefaultModelFallback,
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "gemini"},
			{Name: DefaultModelFallback, Provider: "openai"},
			{Name: "claude-3-5-haiku-latest", Provider: "anthropic"},
			{Name: "local-llama", Provider: "ollama", BaseURL: DefaultOllamaBaseURL},
		},
		"oracle.persona":                        DefaultOraclePersona,
		"oracle.max_tool_turns":                 DefaultOracleMaxToolTurns,
		"oracle.history_window":                 DefaultOracleHistoryWindow,
		"oracle.timeout":                        DefaultOracleTimeout,
		"oracle.tool_log_cap":                   DefaultOracleToolLogCap,
		"scheduler.default_timezone":            "",
		"scheduler.shutdown_timeout":            DefaultSchedulerShutdownTimeout,
		"scheduler.checkin.enabled":             DefaultCheckinEnabled,
		"scheduler.checkin.schedule":            DefaultCheckinSchedule,
		"scheduler.checkin.run_on_start":        true,
		"scheduler.checkin.max_message_len":     DefaultCheckinMaxMessageLen,
		"scheduler.reflection.enabled":          DefaultReflectionEnabled,
		"scheduler.reflection.schedule":         DefaultReflectionSchedule,
		"scheduler.reflection.run_on_start":     false,
		"scheduler.reflection.max_message_len":  DefaultReflectionMaxMessageLen,
		"scheduler.reflection.max_delivery_len": DefaultReflectionMaxDeliveryLen,
		"scheduler.reflection.history_cap":      DefaultReflectionHistoryCap,
		"delivery.default_channel":              DefaultDeliveryChannel,
		"delivery.send_timeout":                 DefaultDeliverySendTimeout,
		"adapters.slack.port":                   DefaultSlackPort,
		"adapters.telegram.update_timeout":      DefaultTelegramUpdateTimeout,
		"adapters.telegram.parse_mode":          DefaultTelegramParseMode,
		"daemon.shutdown_timeout":               DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":          DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":       DefaultDaemonStartupShutdownTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".navi", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	known := make(map[string]string, len(defaults))
	for key := range defaults {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	k.Load(env.Provider("NAVI_", ".", func(s string) string {
		return envKey(s, known)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	injectProviderKeys(&cfg)

	return &cfg, nil
}

// envKey maps NAVI_SCHEDULER_CHECKIN_MAX_MESSAGE_LEN onto
// scheduler.checkin.max_message_len. Keys with a default are matched exactly
// so underscores inside key names survive; anything else splits on "_".
func envKey(s string, known map[string]string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(s, "NAVI_"))
	if key, ok := known[trimmed]; ok {
		return key
	}
	return strings.ReplaceAll(trimmed, "_", ".")
}

func injectProviderKeys(cfg *Config) {
	keys := map[string]string{
		"openai":    os.Getenv("OPENAI_API_KEY"),
		"anthropic": os.Getenv("ANTHROPIC_API_KEY"),
		"gemini":    os.Getenv("GEMINI_API_KEY"),
	}
	for i, m := range cfg.Models.Registry {
		if m.APIKey != "" {
			continue
		}
		if key := keys[m.Provider]; key != "" {
			cfg.Models.Registry[i].APIKey = key
		}
	}
	if cfg.Adapters.Telegram.BotToken == "" {
		cfg.Adapters.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Adapters.Slack.BotToken == "" {
		cfg.Adapters.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if cfg.Adapters.Slack.SigningSecret == "" {
		cfg.Adapters.Slack.SigningSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	root, err := pathutil.Expand(cfg.Data.Root)
	if err != nil {
		return err
	}
	if root != "" {
		cfg.Data.Root = root
	}

	for _, field := range []*string{&cfg.Data.RegistryFile, &cfg.Data.LinkCodeFile} {
		resolved, err := pathutil.ResolveUnder(cfg.Data.Root, *field)
		if err != nil {
			return err
		}
		*field = resolved
	}

	return nil
}
