package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/seekhub/translator/internal/auth"
	"github.com/seekhub/translator/internal/config"
)

// TokenIssueAction prints a signed token for local testing of the API.
func TokenIssueAction(ctx context.Context, cmd *cli.Command) error {
	secret := cmd.String("secret")
	if secret == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		secret = cfg.JWT.Secret
	}

	token, err := auth.GenerateToken(cmd.String("user"), cmd.String("email"), secret, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output(cmd), token)
	return err
}
