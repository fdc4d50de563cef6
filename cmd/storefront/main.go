package main

import (
	"fmt"
	"os"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Cart and checkout service for the shoe store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, nil, err
		}
		zap.ReplaceGlobals(log)
		return cfg, log, nil
	}

	root.AddCommand(newServeCmd(load), newMigrateCmd(load))
	return root
}

type loader func() (*config.Config, *zap.Logger, error)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
