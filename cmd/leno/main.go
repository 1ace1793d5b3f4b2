// Command leno broadcasts lines read from stdin to browser dashboards over
// WebSocket.
//
//	some-process | leno [--config leno.yaml] [--log-format nginx|logfmt]
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suda/leno/internal/app"
	"github.com/suda/leno/internal/config"
	"github.com/suda/leno/internal/logging"
	"github.com/suda/leno/internal/parser"
	"github.com/suda/leno/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("leno failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath    string
		lineFormat string
		port       int
	)

	root := &cobra.Command{
		Use:           "leno",
		Short:         "Stream stdin to a live log dashboard",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-format") {
				if _, err := parser.ParseFormat(lineFormat); err != nil {
					return err
				}
				cfg.LineFormat = lineFormat
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			if err := logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
				return err
			}
			slog.Info("config loaded",
				"http_port", cfg.HTTPPort,
				"line_format", cfg.LineFormat,
				"max_connections", cfg.WebSocket.MaxConnections,
				"queue_size", cfg.WebSocket.QueueSize,
			)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx, cfg, cmd.InOrStdin(), app.Options{ConfigPath: cfgPath}); err != nil {
				return err
			}
			slog.Info("leno stopped")
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file (hot reloaded)")
	root.Flags().StringVar(&lineFormat, "log-format", "", "parse input lines as nginx or logfmt and send them as JSON")
	root.Flags().IntVar(&port, "port", config.DefaultHTTPPort, "HTTP port (overrides LENO_PORT)")

	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func init() {
	// Default logger until the configured one is installed.
	_ = logging.Init("info", "text", os.Stderr)
}
