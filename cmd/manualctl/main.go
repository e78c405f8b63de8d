// Command manualctl administers the manual-data backend configured through
// the same environment as the finboard server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/dataset"
	applog "finboard/internal/log"
)

var (
	// Global flags
	backendFlag string
	timeout     time.Duration
	verbose     bool

	cfg    *config.Config
	logger *applog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "manualctl",
	Short: "Administer finboard manual data",
	Long: `manualctl operates on the manual-data backend selected by MANUAL_DATA_BACKEND
(or --backend): it applies schema migrations, runs the one-off foreign key
migration, prints the manual summary and edits the slug records.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		var err error
		cfg, err = cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		if backendFlag != "" {
			cfg.ManualDataBackend = backendFlag
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = cli.SetupLogger(level).WithComponent(applog.ComponentMigrate)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Args:  cobra.NoArgs,
	RunE: withManual(func(ctx context.Context, cmd *cobra.Command, m *cli.Manual, _ []string) error {
		if m.Backend.DB == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s has no schema to migrate\n", cfg.ManualDataBackend)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", m.Backend.DB.Dialect())
		return nil
	}),
}

var dropFKCmd = &cobra.Command{
	Use:   "drop-fk",
	Short: "Drop the manual_data foreign key to the accounts table",
	Long: `Removes manual_data_account_id_fkey, indexes account_id in its place and
prints each step. Only the postgres backend carries the constraint.`,
	Args: cobra.NoArgs,
	RunE: withManual(func(ctx context.Context, cmd *cobra.Command, m *cli.Manual, _ []string) error {
		steps, err := m.Service.DropRentRollAccountFK(ctx)
		if err != nil {
			return fmt.Errorf("drop foreign key: %w", err)
		}
		return printJSON(cmd, map[string]any{"success": true, "steps": steps})
	}),
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the manual summary with derived totals",
	Args:  cobra.NoArgs,
	RunE: withManual(func(ctx context.Context, cmd *cobra.Command, m *cli.Manual, _ []string) error {
		summary, err := m.Service.Summary(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, summary)
	}),
}

var (
	assetValue string
	updatedBy  string
)

var setAssetCmd = &cobra.Command{
	Use:   "set-asset",
	Short: "Set the manual property value in USD",
	Long: `Sets the manual asset value. An empty --value clears it.

Example:
  manualctl set-asset --value 450000 --by alice`,
	Args: cobra.NoArgs,
	RunE: withManual(func(ctx context.Context, cmd *cobra.Command, m *cli.Manual, _ []string) error {
		var value any
		if assetValue != "" {
			value = assetValue
		}
		asset, err := m.Service.UpdateAsset(ctx, value, updatedBy)
		if err != nil {
			return err
		}
		return printJSON(cmd, asset)
	}),
}

var liabilityFields map[string]string

var setLiabilityCmd = &cobra.Command{
	Use:   "set-liability [slug]",
	Short: "Update fields of a named liability",
	Long: `Applies a partial update to one liability. Fields use their API names; an
empty value clears the field.

Example:
  manualctl set-liability roof_loan --field outstandingBalanceUsd=8123.45 --field termMonths=120`,
	Args: cobra.ExactArgs(1),
	RunE: withManual(func(ctx context.Context, cmd *cobra.Command, m *cli.Manual, args []string) error {
		fields := make(map[string]any, len(liabilityFields))
		for name, raw := range liabilityFields {
			if raw == "" {
				fields[name] = nil
				continue
			}
			fields[name] = json.Number(raw)
		}
		all, err := m.Service.UpdateLiability(ctx, args[0], fields, updatedBy)
		if err != nil {
			return err
		}
		return printJSON(cmd, all)
	}),
}

// withManual opens the manual-data backend for the duration of run.
func withManual(run func(context.Context, *cobra.Command, *cli.Manual, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		balances := dataset.Empty()
		if cmd.Name() == "summary" {
			balances = dataset.Load(cfg.StaticDBPath)
		}
		m, err := cli.OpenManual(ctx, cfg, logger, balances)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				logger.Warn("Failed to close manual data backend", "error", err)
			}
		}()
		return run(ctx, cmd, m, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "manual data backend (postgres, sqlite, file)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	setAssetCmd.Flags().StringVar(&assetValue, "value", "", "asset value in USD")
	setAssetCmd.Flags().StringVar(&updatedBy, "by", "", "editor recorded in updatedBy")
	setLiabilityCmd.Flags().StringToStringVar(&liabilityFields, "field", nil, "field=value pairs to update")
	setLiabilityCmd.Flags().StringVar(&updatedBy, "by", "", "editor recorded in updatedBy")

	rootCmd.AddCommand(migrateCmd, dropFKCmd, summaryCmd, setAssetCmd, setLiabilityCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
