package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	stdlog "github.com/rs/zerolog/log"

	"github.com/seekhub/translator/cmd/jobctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewApp().Run(ctx, os.Args); err != nil {
		stdlog.Fatal().Err(err).Msg("jobctl failed")
	}
}
