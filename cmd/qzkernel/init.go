package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initConfigPath string

func newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a default local-tier configuration file",
		Long: `init writes a starter YAML document for the Local configuration tier
if one does not already exist at --config-path. It never overwrites an
existing file.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	c.Flags().StringVar(&initConfigPath, "config-path", "qzkernel.local.yaml", "path to write the local-tier config file")
	return c
}

const defaultLocalConfig = `# qzkernel local-tier configuration.
# Values here override the Global and System tiers but are themselves
# overridden by the Runtime tier and by QORZEN_<KEY_PATH> environment
# variables.
event_bus:
  num_workers: 8
  queue_size: 1024
plugins:
  roots: []
  resource_schedule: "@every 5s"
`

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initConfigPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing file: %s", initConfigPath)
	} else if !os.IsNotExist(err) {
		return err
	}

	if dir := filepath.Dir(initConfigPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if err := os.WriteFile(initConfigPath, []byte(defaultLocalConfig), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initConfigPath)
	return nil
}
