package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var shutdownWait time.Duration

func newShutdownCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "shutdown",
		Short: "Signal a running kernel instance to shut down gracefully",
		Long: `shutdown reads the pidfile left by a running 'qzkernel run' instance,
sends it SIGTERM, and waits up to --wait for the process to exit. Exit code
3 is returned if it does not exit in time.`,
		Args: cobra.NoArgs,
		RunE: runShutdown,
	}
	c.Flags().DurationVar(&shutdownWait, "wait", 30*time.Second, "how long to wait for the instance to exit")
	return c
}

func runShutdown(cmd *cobra.Command, args []string) error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("no running instance found: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(shutdownWait)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "instance (pid %d) stopped\n", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	return &shutdownTimeoutError{cause: fmt.Errorf("instance (pid %d) did not exit within %s", pid, shutdownWait)}
}
