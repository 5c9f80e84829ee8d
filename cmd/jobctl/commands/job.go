package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// JobGetAction prints the stored job.
func JobGetAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer ac.Close()

	job, err := ac.Tracker.GetJob(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	return printJSON(output(cmd), job)
}

// JobCancelAction cancels a non-terminal job.
func JobCancelAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer ac.Close()

	job, err := ac.Tracker.Cancel(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return printJSON(output(cmd), job)
}
