package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rewind/internal/replay"
	"github.com/SmitUplenchwar2687/rewind/internal/world"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		session    string
		speed      float64
		fps        int
		tail       float64
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay [session]",
		Short: "Replay a recorded session through the headless simulation",
		Long: `Decodes a recorded session and replays it: recorded key transitions
drive the simulation tick by tick, and keyframes overwrite entity state
as they come due so the run stays on the recorded track.

Speed: 0 = instant, 1 = real-time, 10 = 10x`,
		Example: `  rewind replay 01HV6Z3K8Q9ZJ4W3YF5T2N7B8C
  rewind replay --session demo --speed 0 --json
  rewind replay demo --speed 2 --tail 1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				session = args[0]
			}
			if session == "" {
				return fmt.Errorf("--session is required")
			}
			rc := a.cfg.Replay
			if cmd.Flags().Changed("speed") {
				rc.Speed = speed
			}
			if cmd.Flags().Changed("fps") {
				rc.FPS = fps
			}
			if cmd.Flags().Changed("tail") {
				rc.Tail = tail
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := replay.Load(ctx, store, session, a.log)
			if err != nil {
				return err
			}
			w := world.ForReplay(sess, a.log)
			drv := replay.NewDriver(sess, w, w, a.log)

			out := cmd.OutOrStdout()
			if !outputJSON {
				fmt.Fprintf(out, "Replaying %s at %gx speed...\n\n", session, rc.Speed)
			}

			var last replay.Frame
			nextReport := 0.0
			summary, err := drv.Run(ctx, replay.RunOptions{FPS: rc.FPS, Speed: rc.Speed, Tail: rc.Tail}, func(f replay.Frame) {
				last = f
				if outputJSON || f.Elapsed < nextReport {
					return
				}
				nextReport += 1
				active := 0
				for _, e := range f.Entities {
					if e.Active {
						active++
					}
				}
				fmt.Fprintf(out, "  t=%7.3f  tick=%-6d active=%-4d pressed=%v\n", f.Elapsed, f.Tick, active, f.Pressed)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"session": session,
					"summary": summary,
					"final":   last,
				})
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Replay Summary ---")
			fmt.Fprintf(out, "  Events:        %d\n", summary.Events)
			fmt.Fprintf(out, "  Keyframes:     %d\n", summary.Keyframes)
			fmt.Fprintf(out, "  Frames:        %d\n", summary.Frames)
			fmt.Fprintf(out, "  Skipped lines: %d\n", summary.Skipped)
			fmt.Fprintf(out, "  Session time:  %.3fs\n", summary.Duration)
			fmt.Fprintf(out, "  Wall time:     %s\n", summary.WallDuration.Round(time.Millisecond))
			fmt.Fprintf(out, "  Bound:         %d enemies, %d players (%d fallback)\n",
				summary.Bindings.Enemies, summary.Bindings.Players, summary.Bindings.Fallbacks)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session name")
	cmd.Flags().Float64Var(&speed, "speed", 1, "replay speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().IntVar(&fps, "fps", 60, "replay tick rate")
	cmd.Flags().Float64Var(&tail, "tail", 0, "seconds to keep simulating after the last record")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the summary and final frame as JSON")

	return cmd
}
