package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/clock"
	"github.com/SmitUplenchwar2687/rewind/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch string
		speed float64
		fps   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session catalogue and stream replays over websocket",
		Long: `Starts an HTTP server over the configured session store.

Endpoints:
  GET  /                            Server info and current time
  GET  /health                      Health check
  GET  /dashboard                   Replay viewer
  GET  /api/sessions                List sessions
  GET  /api/sessions/:name          Decoded session summary
  POST /api/sessions/:name/replay   Stream a replay to websocket clients
  WS   /ws                          Replay frames`,
		Example: `  rewind serve
  rewind serve --addr :9090 --watch demo --speed 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			rc := a.cfg.Replay
			if cmd.Flags().Changed("speed") {
				rc.Speed = speed
			}
			if cmd.Flags().Changed("fps") {
				rc.FPS = fps
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			srv := server.New(server.Options{
				Addr:             a.cfg.Server.Addr,
				FPS:              rc.FPS,
				Speed:            rc.Speed,
				ReplaysPerMinute: a.cfg.Server.ReplaysPerMinute,
				ReplayBurst:      a.cfg.Server.ReplayBurst,
				TrustProxy:       a.cfg.Server.TrustProxy,
			}, store, clock.NewRealClock(), a.log)

			a.log.Info("dashboard available", zap.String("url", "http://localhost"+a.cfg.Server.Addr+"/dashboard"))

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			if watch != "" {
				go func() {
					if _, err := srv.Watch(ctx, watch); err != nil && !errors.Is(err, context.Canceled) {
						a.log.Warn("watch ended", zap.String("session", watch), zap.Error(err))
					}
				}()
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&watch, "watch", "", "replay this session to websocket clients once started")
	cmd.Flags().Float64Var(&speed, "speed", 1, "speed of streamed replays")
	cmd.Flags().IntVar(&fps, "fps", 60, "tick rate of streamed replays")

	return cmd
}
