// Package cmd holds the trader command tree.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rustyeddy/swingtrader/config"
	"github.com/rustyeddy/swingtrader/internal/logger"
	"github.com/rustyeddy/swingtrader/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	JSONLogs   bool
}

// load reads and validates the config file and builds the logger. An
// explicit --log-level wins over the file.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.ConfigPath, o.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	log, err := o.logger(level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (o *rootOptions) logger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	if o.JSONLogs {
		return logger.New(level)
	}
	return logger.Console(level)
}

// NewRootCmd builds the full command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "trader",
		Short: "Swing-trade scanner, paper desk and backtester for US equities",
		Long: `Trader scans daily bars for momentum breakouts and pullbacks, sizes
and risk-checks every setup, paper trades the survivors and replays
history bar by bar for backtests.

Every risk option must be set in the config file or environment; run
"trader config init" for a complete starting point.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&o.ConfigPath, "config", "c", "trader.yaml", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&o.EnvFile, "env", ".env", "dotenv file with SWING_* overrides")
	root.PersistentFlags().StringVar(&o.LogLevel, "log-level", "", "debug, info, warn or error (default from config)")
	root.PersistentFlags().BoolVar(&o.JSONLogs, "json-logs", false, "emit structured JSON logs")

	root.AddCommand(
		newScanCmd(o),
		newTradeCmd(o),
		newBacktestCmd(o),
		newJournalCmd(),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

// openJournal opens the configured sink. It returns nil for type none.
func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		j, err := journal.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal db: %w", err)
		}
		return j, nil
	case "csv":
		j, err := journal.NewCSV(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open journal dir: %w", err)
		}
		return j, nil
	default:
		return nil, nil
	}
}

func closeJournal(log *zap.Logger, j journal.Journal) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		log.Warn("close journal", zap.Error(err))
	}
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
