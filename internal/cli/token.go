package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"quizee-service/internal/auth"
	"quizee-service/internal/config"
)

// NewTokenCmd mints a bearer token for local development.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for an author",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			tokens := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			raw, err := tokens.Issue(auth.Identity{UserID: userID, Name: name})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev", "user id to put in the token")
	cmd.Flags().StringVar(&name, "name", "Developer", "display name to put in the token")
	return cmd
}
