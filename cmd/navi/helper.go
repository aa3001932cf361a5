package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/harunnryd/navi/internal/config"

	"github.com/spf13/cobra"
)

func executeWithRuntime(cmd *cobra.Command, opts runtime.Options, fn func(ctx context.Context, r *runtime.RuntimeComponents) error) error {
	loadedCfg, err := loadConfigForCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, release := interruptible(cmd.Context(), cmd.ErrOrStderr())
	defer release()

	if opts.Output == nil {
		opts.Output = cmd.OutOrStdout()
	}
	components, err := runtime.NewRuntimeBuilder().
		WithContext(ctx).
		WithConfig(loadedCfg).
		WithOptions(opts).
		Build()
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components.Ctx, components)
}

func executeWithStores(cmd *cobra.Command, fn func(ctx context.Context, s *runtime.Stores) error) error {
	loadedCfg, err := loadConfigForCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	stores, err := runtime.OpenStores(loadedCfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, stores)
}

func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	loadedCfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}

	return loadedCfg, nil
}

// requireUser reads the --user flag.
func requireUser(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	user = strings.TrimSpace(user)
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}
