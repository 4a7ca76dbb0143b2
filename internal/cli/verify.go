package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VerifyResult holds verification results.
type VerifyResult struct {
	DatabasePath string `json:"database_path"`
	PragmasOK    bool   `json:"pragmas_ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify database pragmas and reachability",
		Long: `Open the configured database and verify that the journal mode,
synchronous level, and foreign-key pragmas hold the values the engine
requires.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
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

	if err := eng.store.VerifyPragmas(); err != nil {
		_ = formatter.Error(ErrCodeVerify, err.Error(), nil)
		return WrapExitError(ExitFailure, "pragma verification failed", err)
	}

	result := VerifyResult{DatabasePath: eng.cfg.DatabasePath, PragmasOK: true}
	if opts.Format != "text" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s: pragmas ok\n", result.DatabasePath)
	return nil
}
