package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/changesync/internal/models"
)

func newDeleteCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Queue a delete of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runDelete(cmd, args)
		},
	}
}

func (c *Cli) runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := models.ParseEntityKind(args[0])
	if err != nil {
		return err
	}
	id := args[1]

	basis, err := c.metadata.GetKnownRev(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("failed to get known revision: %w", err)
	}

	change := &models.PendingChange{
		Kind:      kind,
		ID:        id,
		Op:        models.OpDelete,
		BasisRev:  basis,
		UpdatedAt: c.now(),
	}
	if err := c.outbox.Enqueue(ctx, change); err != nil {
		return err
	}

	c.io.Printf("Queued delete %s/%s\n", kind, id)
	return nil
}
