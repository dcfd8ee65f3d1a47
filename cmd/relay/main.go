// multipass-relay forwards group-session traffic between members that cannot
// reach each other directly.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/config"
	"github.com/SWAI-Ltd/multipass/internal/group"
	"github.com/SWAI-Ltd/multipass/internal/observability"
)

func main() {
	var cfgPath, addr string
	rootCmd := &cobra.Command{
		Use:           "multipass-relay",
		Short:         "Run a group-session relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Relay.Addr = addr
			}
			log, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			srv, err := group.RunServer(ctx, cfg.Relay.Addr, log)
			if err != nil {
				return fmt.Errorf("start relay: %w", err)
			}
			log.Info("relay listening", zap.String("addr", srv.Addr()))
			<-ctx.Done()
			log.Info("relay shutting down")
			return srv.Close()
		},
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./multipass.yaml)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides relay.addr)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
