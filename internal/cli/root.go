package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/config"
	"github.com/SmitUplenchwar2687/rewind/internal/logging"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

// app carries what every subcommand shares: the merged configuration, the
// process logger and the session store.
type app struct {
	configPath string
	logLevel   string
	logFile    string
	logJSON    bool
	storage    storageOptions

	cfg      config.Config
	log      *zap.Logger
	closeLog func() error
}

// NewRootCmd creates the root rewind command.
func NewRootCmd() *cobra.Command {
	a := &app{
		storage: defaultStorageOptions(),
		log:     zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "rewind",
		Short: "Record and deterministically replay arcade shooter sessions",
		Long: `Rewind captures a running game session as a line-oriented log of key
transitions and entity keyframes, and replays it through the same
simulation so the session can be watched, inspected or debugged.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to JSON config file")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFile, "log-file", "", "also write logs to this rotated file")
	flags.BoolVar(&a.logJSON, "log-json", false, "log as JSON")
	a.storage.addFlags(root)

	root.AddCommand(
		newRecordCmd(a),
		newReplayCmd(a),
		newListCmd(a),
		newInspectCmd(a),
		newArchiveCmd(a),
		newServeCmd(a),
		newGenerateCmd(),
	)

	return root
}

// setup merges the config file, defaults and explicitly set flags, then
// builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") || cfg.Log.Level == "" {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = a.logFile
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}

	a.storage.applyConfigIfUnset(cmd, &cfg.Storage)
	if err := a.storage.normalize(); err != nil {
		return err
	}
	cfg.Storage = a.storage.toConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	log, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		JSON:       cfg.Log.JSON,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// openStore connects to the configured backend.
func (a *app) openStore() (storage.Store, error) {
	return openStore(a.cfg.Storage, a.log)
}
