package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tidevault/ledger/internal/record"
)

// StatsResult holds per-kind record counts.
type StatsResult struct {
	Counts map[string]uint64 `json:"counts"`
	Total  uint64            `json:"total"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Count records per kind",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}

	return cmd
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
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

	counts, err := eng.registry.CountAll(cmd.Context(), eng.store.Base())
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "counting records", err)
	}

	result := StatsResult{Counts: make(map[string]uint64, len(counts))}
	for t, n := range counts {
		result.Counts[t.String()] = n
		result.Total += n
	}
	if opts.Format != "text" {
		return formatter.Success(result)
	}

	kinds := make([]string, 0, len(record.AllTypes))
	for _, t := range record.AllTypes {
		kinds = append(kinds, t.String())
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(formatter.Writer, "%-36s %d\n", kind, result.Counts[kind])
	}
	fmt.Fprintf(formatter.Writer, "%-36s %d\n", "total", result.Total)
	return nil
}
