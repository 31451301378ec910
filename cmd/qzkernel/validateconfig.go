package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/qorzen/kernel/internal/config"
	"github.com/qorzen/kernel/internal/metrics"
)

var validateConfigPaths []string

func newValidateConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate configuration files without starting the kernel",
		Args:  cobra.NoArgs,
		RunE:  runValidateConfig,
	}
	c.Flags().StringSliceVar(&validateConfigPaths, "file", nil, "local-tier YAML file to validate (repeatable)")
	return c
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	store := config.New(metrics.New(prometheus.NewRegistry()))
	loader := config.NewFileLoader(store)

	for _, path := range validateConfigPaths {
		if err := loader.LoadFile(config.TierLocal, path); err != nil {
			return &configValidationError{cause: fmt.Errorf("%s: %w", path, err)}
		}
	}
	if err := config.LoadEnvOverlay(store); err != nil {
		return &configValidationError{cause: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "config valid")
	return nil
}
