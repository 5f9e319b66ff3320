package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

func newArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <session>...",
		Short: "Compress finished sessions with zstd",
		Long: `Replaces each session file with a zstd-compressed copy. Archived
sessions are still listed, inspected and replayed transparently.
Only the file backend supports archiving.`,
		Example: `  rewind archive demo
  rewind archive --dir recordings 01HV6Z3K8Q9ZJ4W3YF5T2N7B8C demo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			fs, ok := store.(*storage.FileStore)
			if !ok {
				return fmt.Errorf("archive requires the file backend, got %q", a.cfg.Storage.Backend)
			}
			for _, name := range args {
				path, err := fs.Archive(storage.TrimName(name))
				if err != nil {
					return fmt.Errorf("archiving %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %s to %s\n", name, path)
			}
			return nil
		},
	}
}
