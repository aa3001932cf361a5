package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Models.Default != DefaultModelDefault {
		t.Errorf("Expected default model %s, got %s", DefaultModelDefault, cfg.Models.Default)
	}
	if cfg.Scheduler.Checkin.Schedule != DefaultCheckinSchedule {
		t.Errorf("Expected checkin schedule %s, got %s", DefaultCheckinSchedule, cfg.Scheduler.Checkin.Schedule)
	}
	if cfg.Scheduler.Reflection.Schedule != DefaultReflectionSchedule {
		t.Errorf("Expected reflection schedule %s, got %s", DefaultReflectionSchedule, cfg.Scheduler.Reflection.Schedule)
	}
	if cfg.Scheduler.Reflection.MaxMessageLen != DefaultReflectionMaxMessageLen {
		t.Errorf("Expected reflection ceiling %d, got %d", DefaultReflectionMaxMessageLen, cfg.Scheduler.Reflection.MaxMessageLen)
	}
	if cfg.Scheduler.Reflection.HistoryCap != DefaultReflectionHistoryCap {
		t.Errorf("Expected reflection history cap %d, got %d", DefaultReflectionHistoryCap, cfg.Scheduler.Reflection.HistoryCap)
	}
	if cfg.Oracle.ToolLogCap != DefaultOracleToolLogCap {
		t.Errorf("Expected tool log cap %d, got %d", DefaultOracleToolLogCap, cfg.Oracle.ToolLogCap)
	}
	if cfg.Store.LockMaxRetry != DefaultStoreLockMaxRetry {
		t.Errorf("Expected default store lock max retry %d, got %d", DefaultStoreLockMaxRetry, cfg.Store.LockMaxRetry)
	}
	if cfg.Adapters.Telegram.ParseMode != DefaultTelegramParseMode {
		t.Errorf("Expected telegram parse mode %s, got %s", DefaultTelegramParseMode, cfg.Adapters.Telegram.ParseMode)
	}

	wantRoot := filepath.Join(home, ".navi", "data")
	if cfg.Data.Root != wantRoot {
		t.Errorf("data root = %q, want %q", cfg.Data.Root, wantRoot)
	}
	wantRegistry := filepath.Join(wantRoot, DefaultDataRegistryFile)
	if cfg.Data.RegistryFile != wantRegistry {
		t.Errorf("registry file = %q, want %q", cfg.Data.RegistryFile, wantRegistry)
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
server:
  port: 9090
scheduler:
  reflection:
    schedule: "0 * * * *"
    max_message_len: 500
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("failed to load config with --config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Reflection.Schedule != "0 * * * *" {
		t.Fatalf("expected cron schedule, got %s", cfg.Scheduler.Reflection.Schedule)
	}
	if cfg.Scheduler.Reflection.MaxMessageLen != 500 {
		t.Fatalf("expected reflection ceiling 500, got %d", cfg.Scheduler.Reflection.MaxMessageLen)
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("expected error when --config points to missing file")
	}
}

func TestLoad_EnvOverridesKeepUnderscoreKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NAVI_SCHEDULER_CHECKIN_MAX_MESSAGE_LEN", "1200")
	t.Setenv("NAVI_SERVER_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scheduler.Checkin.MaxMessageLen != 1200 {
		t.Fatalf("checkin ceiling = %d, want 1200", cfg.Scheduler.Checkin.MaxMessageLen)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Server.LogLevel)
	}
}

func TestLoad_InjectsProviderKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	for _, m := range cfg.Models.Registry {
		switch m.Provider {
		case "gemini":
			if m.APIKey != "gem-key" {
				t.Fatalf("gemini key = %q", m.APIKey)
			}
		case "openai":
			if m.APIKey != "oa-key" {
				t.Fatalf("openai key = %q", m.APIKey)
			}
		}
	}
}

func TestLoad_ExpandsConfiguredPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
data:
  root: ~/navi-data
  registry_file: /etc/navi/mappings.json
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	wantRoot := filepath.Join(tmpDir, "navi-data")
	if cfg.Data.Root != wantRoot {
		t.Fatalf("data root = %q, want %q", cfg.Data.Root, wantRoot)
	}
	if cfg.Data.RegistryFile != "/etc/navi/mappings.json" {
		t.Fatalf("absolute registry path rewritten: %q", cfg.Data.RegistryFile)
	}
	wantCodes := filepath.Join(wantRoot, DefaultDataLinkCodeFile)
	if cfg.Data.LinkCodeFile != wantCodes {
		t.Fatalf("link code file = %q, want %q", cfg.Data.LinkCodeFile, wantCodes)
	}
}
