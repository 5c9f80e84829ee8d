// Package commands implements jobctl, the operator CLI for translation jobs.
package commands

import (
	"time"

	"github.com/urfave/cli/v3"
)

// NewApp builds the jobctl command tree.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "jobctl",
		Usage: "inspect and operate translation jobs",
		Commands: []*cli.Command{
			{
				Name:  "job",
				Usage: "job commands",
				Commands: []*cli.Command{
					{
						Name:  "get",
						Usage: "print a job as JSON",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
						},
						Action: JobGetAction,
					},
					{
						Name:  "cancel",
						Usage: "cancel a job and notify its subscribers",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
						},
						Action: JobCancelAction,
					},
				},
			},
			{
				Name:  "queue",
				Usage: "asynq queue commands",
				Commands: []*cli.Command{
					{
						Name:  "stats",
						Usage: "show queue sizes",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
						},
						Action: QueueStatsAction,
					},
					{
						Name:  "sweep",
						Usage: "fail stalled jobs and delete expired ones",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "local", Usage: "run the sweep in this process instead of enqueueing it"},
						},
						Action: QueueSweepAction,
					},
				},
			},
			{
				Name:  "token",
				Usage: "development helpers for API tokens",
				Commands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "issue an HMAC token for a user",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "user", Usage: "user id", Required: true},
							&cli.StringFlag{Name: "email", Usage: "email claim"},
							&cli.StringFlag{Name: "secret", Usage: "signing secret (defaults to JWT_SECRET)"},
							&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
						},
						Action: TokenIssueAction,
					},
				},
			},
		},
	}
}
