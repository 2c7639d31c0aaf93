package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queued changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runStatus(cmd)
		},
	}
}

func (c *Cli) runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()

	status, err := c.syncService.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	c.io.Printf("Server watermark: %d\n", status.Watermark)

	if status.Pending == 0 {
		c.io.Println("✓ Outbox is empty")
		return nil
	}

	c.io.Printf("Pending changes: %d (conflicted: %d)\n", status.Pending, status.Conflicted)

	pending, err := c.outbox.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending changes: %w", err)
	}

	c.io.Println()
	for _, change := range pending {
		line := fmt.Sprintf("  %-6s %s/%s basis=%d", change.Op, change.Kind, change.ID, change.BasisRev)
		if change.IsConflicted() {
			line += fmt.Sprintf(" CONFLICT server=%d", change.Conflict.CurrentRev)
		}
		c.io.Println(line)
	}
	return nil
}
