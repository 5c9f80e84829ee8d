package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/model"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/worker"
)

// QueueStatsAction prints per-queue counters from the asynq inspector.
func QueueStatsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	inspector := asynq.NewInspector(worker.RedisOpt(&cfg.Redis))
	defer inspector.Close()

	stats, err := queue.NewStats(inspector).Collect()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return printJSON(output(cmd), stats)
	}
	return renderStats(output(cmd), stats)
}

func renderStats(w io.Writer, stats *model.QueueStatsResponse) error {
	table := tablewriter.NewWriter(w)
	table.Header("Queue", "Size", "Pending", "Active", "Scheduled", "Retry", "Archived", "Processed", "Failed", "Paused")
	for _, q := range stats.Queues {
		if err := table.Append(
			q.Queue,
			fmt.Sprintf("%d", q.Size),
			fmt.Sprintf("%d", q.Pending),
			fmt.Sprintf("%d", q.Active),
			fmt.Sprintf("%d", q.Scheduled),
			fmt.Sprintf("%d", q.Retry),
			fmt.Sprintf("%d", q.Archived),
			fmt.Sprintf("%d", q.Processed),
			fmt.Sprintf("%d", q.Failed),
			fmt.Sprintf("%t", q.Paused),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// QueueSweepAction enqueues a maintenance sweep for the workers, or runs
// it directly with --local.
func QueueSweepAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer ac.Close()

	if cmd.Bool("local") {
		sweeper := service.NewMaintenanceService(ac.Backends.Jobs, ac.Tracker, ac.Config.Jobs.StallTimeout, ac.Config.Jobs.Retention, ac.Logger)
		report, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		return printJSON(output(cmd), report)
	}

	client := asynq.NewClient(worker.RedisOpt(&ac.Config.Redis))
	defer client.Close()

	taskID, err := queue.EnqueueSweep(ctx, client)
	if err != nil {
		return err
	}
	return printJSON(output(cmd), map[string]string{"taskId": taskID})
}
