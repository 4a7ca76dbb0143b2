package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidevault/ledger/internal/delta"
	"github.com/tidevault/ledger/internal/record"
)

// ProvisionResult holds provisioning results.
type ProvisionResult struct {
	DatabasePath string `json:"database_path"`
	SeededLimits int    `json:"seeded_limits"`
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Drop and recreate the ledger schema",
		Long: `Drop every record table, recreate the schema, and seed the
account-type default limits from the config file. Destroys all data.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(rootOpts, cmd)
		},
	}

	return cmd
}

func runProvision(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	eng, err := openEngine(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeBadConfig, err.Error(), nil)
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	if err := eng.registry.Provision(ctx); err != nil {
		_ = formatter.Error(ErrCodeProvision, err.Error(), nil)
		return WrapExitError(ExitCommandError, "provisioning schema", err)
	}
	formatter.VerboseLog("schema provisioned at %s", eng.cfg.DatabasePath)

	// Seed the configured per-type default limits.
	seeded := 0
	sc := eng.store.Base()
	d := delta.New()
	for _, limits := range eng.cfg.TypeLimits() {
		err := eng.registry.AddOrChange(ctx, sc, d, &record.Entry{Body: limits})
		if err != nil {
			_ = formatter.Error(ErrCodeProvision, err.Error(), nil)
			return WrapExitError(ExitCommandError, "seeding default limits", err)
		}
		seeded++
	}
	if err := d.Commit(); err != nil {
		return WrapExitError(ExitCommandError, "seeding default limits", err)
	}

	result := ProvisionResult{
		DatabasePath: eng.cfg.DatabasePath,
		SeededLimits: seeded,
	}
	if opts.Format != "text" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "provisioned %s (%d default limit rows)\n",
		result.DatabasePath, result.SeededLimits)
	return nil
}
