package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/changesync/internal/client/api"
)

func newPushCommand(get func() *Cli, opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push queued changes to the server",
		Long: `Push all queued changes to the server in one batch.

Changes rejected as conflicts stay in the outbox and are skipped on later
pushes. Use --force to resend them on top of the server revision.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPush(cmd, opts.Token, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite server revisions of conflicted changes")
	return cmd
}

func (c *Cli) runPush(cmd *cobra.Command, tokenFlag string, force bool) error {
	token, err := c.resolveToken(tokenFlag)
	if err != nil {
		return err
	}

	result, err := c.syncService.Push(cmd.Context(), token, force)
	if err != nil {
		if api.IsUnauthorized(err) {
			return errors.New("server rejected the sync token")
		}
		return fmt.Errorf("push failed: %w", err)
	}

	if result.Pushed == 0 {
		c.io.Println("Nothing to push.")
		if result.Skipped > 0 {
			c.io.Printf("%d conflicted change(s) skipped. Run 'changesync push --force' to overwrite.\n", result.Skipped)
		}
		return nil
	}

	c.io.Printf("Pushed:     %d\n", result.Pushed)
	c.io.Printf("Applied:    %d\n", result.Applied)
	c.io.Printf("Latest rev: %d\n", result.LatestRev)

	if len(result.Rejected) > 0 {
		c.io.Println()
		c.io.Println("Rejected:")
		for _, r := range result.Rejected {
			c.io.Printf("  %s/%s: %s\n", r.Entity, r.ID, r.Reason)
		}
	}

	if len(result.Conflicts) > 0 {
		c.io.Println()
		c.io.Println("Conflicts (server kept its version):")
		for _, conflict := range result.Conflicts {
			c.io.Printf("  %s/%s: basis rev %d, server rev %d\n",
				conflict.Entity, conflict.ID, conflict.IncomingRev, conflict.CurrentRev)
		}
		c.io.Println("Run 'changesync push --force' to overwrite.")
	}

	if result.Skipped > 0 {
		c.io.Printf("Skipped conflicted: %d\n", result.Skipped)
	}
	return nil
}
