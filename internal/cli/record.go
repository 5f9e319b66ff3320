package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/capture"
	"github.com/SmitUplenchwar2687/rewind/internal/input"
	"github.com/SmitUplenchwar2687/rewind/internal/recorder"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
	"github.com/SmitUplenchwar2687/rewind/internal/world"
)

// recordResult is printed by the record command.
type recordResult struct {
	Session  string        `json:"session"`
	Ticks    int           `json:"ticks"`
	Elapsed  float64       `json:"elapsed"`
	Kills    int           `json:"kills"`
	Capture  capture.Stats `json:"capture"`
	Realtime bool          `json:"realtime"`
}

func newRecordCmd(a *app) *cobra.Command {
	var (
		name        string
		duration    time.Duration
		fps         int
		seed        uint64
		interval    float64
		queue       int
		decimals    int
		players     int
		explicitIDs bool
		realtime    bool
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a headless session driven by scripted input",
		Long: `Runs the simulation without a renderer, pressing keys from a seeded bot,
and records key transitions every tick plus entity keyframes on a fixed
interval. Lines are written by a background writer; if it falls behind,
lines are dropped and counted rather than stalling the simulation.`,
		Example: `  rewind record --duration 30s
  rewind record --name demo --seed 7 --keyframe-interval 0.05
  rewind record --realtime --duration 10s --storage redis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := a.cfg.Recording
			if cmd.Flags().Changed("fps") {
				rc.FPS = fps
			}
			if cmd.Flags().Changed("keyframe-interval") {
				rc.KeyframeInterval = interval
			}
			if cmd.Flags().Changed("queue") {
				rc.QueueCapacity = queue
			}
			if cmd.Flags().Changed("decimals") {
				rc.QuantizeDecimals = decimals
			}
			if cmd.Flags().Changed("explicit-ids") {
				rc.ExplicitPlayerIDs = explicitIDs
			}
			if rc.FPS <= 0 || rc.KeyframeInterval <= 0 {
				return fmt.Errorf("fps and keyframe interval must be positive")
			}
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", duration)
			}
			if name == "" {
				name = storage.NewName(time.Now())
			}
			if err := storage.ValidateName(name); err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := runRecording(ctx, store, name, recordParams{
				recorder: recorder.Config{
					KeyframeInterval:  rc.KeyframeInterval,
					QuantizeDecimals:  rc.QuantizeDecimals,
					ExplicitPlayerIDs: rc.ExplicitPlayerIDs,
					StopTimeout:       rc.StopTimeout,
				},
				capacity: rc.QueueCapacity,
				fps:      rc.FPS,
				duration: duration,
				seed:     seed,
				players:  players,
				realtime: realtime,
			}, a.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "Recorded session %s\n", res.Session)
			fmt.Fprintf(out, "  Ticks:    %d (%.3fs)\n", res.Ticks, res.Elapsed)
			fmt.Fprintf(out, "  Kills:    %d\n", res.Kills)
			fmt.Fprintf(out, "  Lines:    %d written, %d dropped\n", res.Capture.Written, res.Capture.Dropped)
			if res.Capture.TimedOut {
				fmt.Fprintln(out, "  Warning:  writer did not finish before the stop timeout")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "session name (default: a new ULID)")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "session time to record")
	cmd.Flags().IntVar(&fps, "fps", 60, "simulation tick rate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for the input bot and enemy spawner")
	cmd.Flags().Float64Var(&interval, "keyframe-interval", 0.1, "seconds between entity keyframes")
	cmd.Flags().IntVar(&queue, "queue", capture.DefaultCapacity, "capture queue capacity in lines")
	cmd.Flags().IntVar(&decimals, "decimals", 3, "decimal places kept in timestamps")
	cmd.Flags().IntVar(&players, "players", 1, "number of players")
	cmd.Flags().BoolVar(&explicitIDs, "explicit-ids", false, "write an id on every player entry")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace ticks against wall time")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the result as JSON")

	return cmd
}

type recordParams struct {
	recorder recorder.Config
	capacity int
	fps      int
	duration time.Duration
	seed     uint64
	players  int
	realtime bool
}

// runRecording drives the world with bot input and records it into store.
// Cancelling ctx ends the session early; what was captured is kept.
func runRecording(ctx context.Context, store storage.Store, name string, p recordParams, log *zap.Logger) (*recordResult, error) {
	opts := world.DefaultOptions()
	opts.Seed = p.seed
	if p.players > 0 {
		opts.Players = p.players
	}
	w := world.New(opts, log)

	sink := capture.New(store, capture.Options{Capacity: p.capacity}, log)
	rec := recorder.New(sink, p.recorder, log)
	width, height := w.Size()
	if err := rec.Start(ctx, name, width, height); err != nil {
		return nil, err
	}

	keys := input.NewManager()
	bot := input.NewBot(p.seed, nil)
	tick := time.Second / time.Duration(p.fps)
	dt := 1 / float64(p.fps)
	total := int(p.duration / tick)

	var ticker *time.Ticker
	if p.realtime {
		ticker = time.NewTicker(tick)
		defer ticker.Stop()
	}

	ticks := 0
loop:
	for ; ticks < total; ticks++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			break
		}

		bot.Step(tick, keys)
		keys.BeginTick()
		w.Step(dt, keys)
		rec.Update(dt, w, keys)
	}

	res := &recordResult{
		Session:  name,
		Ticks:    ticks,
		Elapsed:  rec.Elapsed(),
		Kills:    w.Kills(),
		Realtime: p.realtime,
	}
	res.Capture = rec.Stop()
	if res.Capture.Err != nil {
		return res, fmt.Errorf("recording %s: %w", name, res.Capture.Err)
	}
	return res, nil
}
