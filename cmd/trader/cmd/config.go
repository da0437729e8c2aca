package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/swingtrader/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Examples:
  trader config init -o trader.yaml
  trader config validate -c trader.yaml`,
	}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a complete default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists; use --force to overwrite", output)
				}
			}
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "created default configuration: %s\n", output)
			fmt.Fprintf(w, "review the risk section, then run:\n  trader scan -c %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "trader.yaml", "output config file path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the config with .env and SWING_* overrides and check it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ro.ConfigPath, ro.EnvFile)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			l := cfg.Limits()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "configuration valid: %s\n", ro.ConfigPath)
			en.Fprintf(w, "  account:   $%.2f\n", cfg.Account.StartingEquity)
			fmt.Fprintf(w, "  strategy:  %s (lookback %d, atr %d)\n", cfg.Strategy.Name, cfg.Strategy.Lookback, cfg.Strategy.ATRPeriod)
			fmt.Fprintf(w, "  risk:      %.2f%% per trade, %.0f%% max position, %d positions\n",
				l.MaxRiskPct*100, l.MaxPositionPct*100, l.MaxPositions)
			fmt.Fprintf(w, "  costs:     %.2f%% slippage, $%.2f commission\n", l.SlippagePct*100, l.CommissionPerTrade)
			fmt.Fprintf(w, "  universe:  %d symbol(s), %s bars from %s\n", len(cfg.Data.Symbols), cfg.Data.Timeframe, cfg.Data.Dir)
			fmt.Fprintf(w, "  journal:   %s\n", cfg.Journal.Type)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
