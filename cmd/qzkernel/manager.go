package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newManagerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "manager",
		Short: "Inspect managers hosted by a running kernel instance",
	}
	c.AddCommand(newManagerListCmd())
	c.AddCommand(newManagerStatusCmd())
	return c
}

func newManagerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every manager and its current lifecycle state",
		Args:  cobra.NoArgs,
		RunE:  runManagerList,
	}
}

func runManagerList(cmd *cobra.Command, args []string) error {
	snap, err := readStatusSnapshot()
	if err != nil {
		return fmt.Errorf("no running instance status found: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("NAME"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("STATE"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("REASON"),
	})
	for _, m := range snap.Managers {
		t.AppendRow(table.Row{m.Name, stateText(m.State), m.FailureReason})
	}
	t.Render()
	return nil
}

func newManagerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show detailed status for a single manager",
		Args:  cobra.ExactArgs(1),
		RunE:  runManagerStatus,
	}
}

func runManagerStatus(cmd *cobra.Command, args []string) error {
	snap, err := readStatusSnapshot()
	if err != nil {
		return fmt.Errorf("no running instance status found: %w", err)
	}

	name := args[0]
	for _, m := range snap.Managers {
		if m.Name != name {
			continue
		}
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("FIELD"),
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("VALUE"),
		})
		t.AppendRows([]table.Row{
			{"name", m.Name},
			{"state", stateText(m.State)},
			{"failure_reason", m.FailureReason},
			{"last_transition_at", m.LastTransitionAt.Format(time.RFC3339)},
			{"last_error", m.LastError},
		})
		t.Render()
		return nil
	}
	return fmt.Errorf("manager %q not found", name)
}

// stateText colors a manager.State by severity, matching the convention of
// coloring table cells with go-pretty/v6/text.
func stateText(state string) string {
	switch state {
	case "Running":
		return text.FgGreen.Sprint(state)
	case "Degraded":
		return text.FgYellow.Sprint(state)
	case "Failed":
		return text.FgRed.Sprint(state)
	default:
		return state
	}
}
