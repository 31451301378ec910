package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a running kernel instance's overall status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	snap, err := readStatusSnapshot()
	if err != nil {
		return fmt.Errorf("no running instance status found: %w", err)
	}

	health := text.FgGreen.Sprint("healthy")
	if !snap.Healthy {
		health = text.FgRed.Sprint("degraded")
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("FIELD"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("VALUE"),
	})
	t.AppendRows([]table.Row{
		{"pid", snap.PID},
		{"started_at", snap.StartedAt.Format(time.RFC3339)},
		{"updated_at", snap.UpdatedAt.Format(time.RFC3339)},
		{"uptime", time.Since(snap.StartedAt).Round(time.Second).String()},
		{"health", health},
		{"managers", len(snap.Managers)},
		{"plugins", snap.PluginCount},
	})
	t.Render()

	if !snap.Healthy {
		return fmt.Errorf("kernel reports a degraded or failed manager")
	}
	return nil
}
