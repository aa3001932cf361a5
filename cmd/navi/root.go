package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/navi/internal/config"
	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/logger"

	"github.com/spf13/cobra"
)

// cfg is resolved once per invocation by the root pre-run hook.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "navi",
	Short: "Navi proactive coaching runtime",
	Long: `Navi checks in on the progress trackers users set and reflects on their
goals every hour, deciding whether to reach out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates usage mistakes from runtime failures for scripts.
func exitCode(err error) int {
	switch {
	case naviErrors.IsCategory(err, naviErrors.ErrInvalidInput):
		return 2
	case naviErrors.IsCategory(err, naviErrors.ErrNotFound):
		return 3
	default:
		return 1
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.navi/config.yaml)")
	flags.String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	flags.Int("server.port", config.DefaultServerPort, "health server port")
	flags.String("data.root", "", "directory holding user documents (default is $HOME/.navi/data)")
}
