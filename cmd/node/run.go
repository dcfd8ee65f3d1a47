package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/client"
	"github.com/SWAI-Ltd/multipass/internal/config"
	"github.com/SWAI-Ltd/multipass/internal/observability"
)

// note is the chat line exchanged by nodes.
type note struct {
	Text string `json:"text" cbor:"text" validate:"required,max=512"`
}

func (note) MessageType() int { return 100 }

func runCmd() *cobra.Command {
	var (
		cfgPath string
		peers   []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join the configured transports and chat over stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, peers, log)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./multipass.yaml)")
	cmd.Flags().StringSliceVar(&peers, "connect", nil, "mesh peer addresses to invite directly")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, peers []string, log *zap.Logger) error {
	localID, err := cfg.ResolveLocalID()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	ccfg := client.FromConfig(cfg, localID)
	ccfg.Types = []client.Shape{client.ShapeOf(func() client.Message { return &note{} })}
	ccfg.Logger = log
	ccfg.Metrics = reg
	c, err := client.New(ccfg)
	if err != nil {
		return err
	}
	defer c.Close()
	log.Info("node started", zap.Stringer("local", localID), zap.String("mesh", c.MeshAddr()))

	for _, addr := range peers {
		dctx, dcancel := context.WithTimeout(ctx, 10*time.Second)
		if err := c.Connect(dctx, addr); err != nil {
			log.Warn("invite failed", zap.String("addr", addr), zap.Error(err))
		}
		dcancel()
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: newRouter(c, reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	go func() {
		for r := range c.Messages(ctx) {
			if n, ok := r.Message.(*note); ok && r.From != c.LocalParticipant() {
				log.Info("message received", zap.Stringer("from", r.From), zap.String("text", n.Text))
			}
		}
	}()
	go func() {
		for ps := range c.Updates(ctx) {
			log.Info("roster changed", zap.Int("participants", len(ps)))
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("node shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			if line == "" {
				continue
			}
			if err := c.Send(&note{Text: line}); err != nil {
				log.Warn("send failed", zap.Error(err))
			}
		}
	}
}
