package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/navi/internal/config"
	naviErrors "github.com/harunnryd/navi/internal/errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/config.yaml
var embeddedDefaultConfig []byte

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect or create the Navi configuration file.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after defaults, config file, environment and flags
have been merged. API keys and bot tokens are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if loaded == nil {
			return fmt.Errorf("config is not initialized; run 'navi config init' first")
		}
		format, _ := cmd.Flags().GetString("format")
		return encodeConfig(cmd.OutOrStdout(), redactConfigSecrets(loaded), format)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to $HOME/.navi/config.yaml. An existing
file is left alone unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		written, err := writeDefaultConfig(path, force)
		if err != nil {
			return err
		}
		if !written {
			fmt.Fprintf(out, "Config already exists at %s\n", path)
			fmt.Fprintln(out, "Run 'navi config view' to inspect it, or 'navi config init --force' to overwrite it.")
			return nil
		}

		fmt.Fprintf(out, "✓ Initialized config at %s\n", path)
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "  - export GEMINI_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY")
		fmt.Fprintln(out, "  - set adapters.telegram.bot_token and enable the adapter")
		fmt.Fprintln(out, "  - run 'navi link --user <email>' and send the code to your bot")
		return nil
	},
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".navi", "config.yaml"), nil
}

// writeDefaultConfig reports false when path exists and force is unset.
func writeDefaultConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	body := strings.TrimSpace(string(embeddedDefaultConfig)) + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return false, fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return true, nil
}

func encodeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return naviErrors.InvalidInput(fmt.Sprintf("unknown config format %q (want yaml or json)", format))
	}
}

// redactConfigSecrets returns a copy; the registry slice is cloned so the
// caller's keys survive.
func redactConfigSecrets(in *config.Config) *config.Config {
	if in == nil {
		return nil
	}
	out := *in
	out.Models.Registry = append([]config.ModelRegistry(nil), in.Models.Registry...)
	for i := range out.Models.Registry {
		out.Models.Registry[i].APIKey = maskSecret(out.Models.Registry[i].APIKey)
	}
	for _, secret := range []*string{
		&out.Adapters.Slack.SigningSecret,
		&out.Adapters.Slack.BotToken,
		&out.Adapters.Telegram.BotToken,
	} {
		*secret = maskSecret(*secret)
	}
	return &out
}

func maskSecret(secret string) string {
	switch n := len(secret); {
	case n == 0:
		return ""
	case n <= 4:
		return "****"
	default:
		return secret[:2] + strings.Repeat("*", n-4) + secret[n-2:]
	}
}

func init() {
	configViewCmd.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configViewCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
