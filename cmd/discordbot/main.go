// Package main is the entry point for the discordbot CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/discordbot/core/bootstrap"
	"github.com/m3rciful/discordbot/core/buildinfo"
	corecmd "github.com/m3rciful/discordbot/core/cmd"
	coreconfig "github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/internal/app"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "discordbot",
		Short:         "Telegram bot that relays phrases into Discord channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH)")
	root.AddCommand(runCmd(&configPath), parseCmd(&configPath), versionCmd())
	return root
}

func runBot(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath: configPath,
		NewApp: func(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			return app.New(cfg)
		},
	})
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot(*configPath)
		},
	}
}

func parseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <channel-link>",
		Short: "Append the latest messages of a Discord channel to the parsed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := coreconfig.Load(corecmd.ResolveConfigPath(*configPath, ""))
			if err != nil {
				return err
			}
			infra, err := bootstrap.Run(bootstrap.Options{Config: cfg, SkipMetrics: true})
			if err != nil {
				return err
			}
			defer func() {
				infra.Close(context.Background())
				_ = logger.Shutdown()
			}()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			channel, res, err := app.ParseChannel(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d of %d messages from channel %d into %s\n",
				res.Saved, res.Fetched, channel, cfg.Files.Parsed)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "discordbot %s\n", buildinfo.String())
		},
	}
}
