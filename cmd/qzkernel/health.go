package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report whether a running kernel instance is healthy",
		Long: `health reads the status snapshot a running 'qzkernel run' instance
writes periodically and prints "healthy" or "unhealthy", exiting non-zero
in the latter case.`,
		Args: cobra.NoArgs,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	snap, err := readStatusSnapshot()
	if err != nil {
		return fmt.Errorf("no running instance status found: %w", err)
	}

	if !snap.Healthy {
		fmt.Fprintln(cmd.OutOrStdout(), "unhealthy")
		return fmt.Errorf("kernel reports a degraded or failed manager")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
