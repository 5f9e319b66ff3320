package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

func newListCmd(a *app) *cobra.Command {
	var (
		timeout    time.Duration
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Example: `  rewind list
  rewind list --storage redis --timeout 2s --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var res storage.ListResult
			select {
			case res = <-storage.ListAsync(ctx, store):
			case <-ctx.Done():
				return fmt.Errorf("listing sessions: %w", ctx.Err())
			}
			if res.Err != nil {
				return fmt.Errorf("listing sessions: %w", res.Err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				if res.Sessions == nil {
					res.Sessions = []storage.SessionInfo{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Sessions)
			}

			if len(res.Sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLINES\tBYTES\tMODIFIED\tARCHIVED")
			for _, s := range res.Sessions {
				archived := ""
				if s.Compressed {
					archived = "yes"
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.Name, s.Lines, s.Bytes, s.ModTime.Format(time.RFC3339), archived)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up listing after this long")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output sessions as JSON")

	return cmd
}
