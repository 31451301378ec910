package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess         = 0
	ExitCodeInitError       = 1
	ExitCodeConfigInvalid   = 2
	ExitCodeShutdownTimeout = 3
)

var rootCmd = &cobra.Command{
	Use:   "qzkernel",
	Short: "Run and operate an embedded qorzen kernel instance",
	Long: `qzkernel is the process boundary around the kernel: it loads tiered
configuration, wires the platform provider for this deployment profile,
starts every registered manager and discovered plugin, and serves as the
systemd-facing entry point for the embedding host.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI and maps returned errors onto the exit codes above.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "qzkernel version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	var configErr *configValidationError
	if errors.As(err, &configErr) {
		return ExitCodeConfigInvalid
	}
	var shutdownErr *shutdownTimeoutError
	if errors.As(err, &shutdownErr) {
		return ExitCodeShutdownTimeout
	}
	return ExitCodeInitError
}

func init() {
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newShutdownCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newManagerCmd())
}
