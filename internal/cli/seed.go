package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/internal/auth"
	"github.com/mesh-intelligence/rituo/internal/store"
)

const defaultSeedPassword = "password123"

func newSeedCmd() *cobra.Command {
	var password, date string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo user half-way through a cycle",
		Long: "Create " + store.SeedUsername + " with five habits, a cycle started fifteen days ago\n" +
			"and alternating completions on every elapsed day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := today(date)
			if err != nil {
				return err
			}
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			ledger, err := attach(cmd, cfg.Store)
			if err != nil {
				return err
			}
			defer ledger.Detach()

			svc := auth.NewService(ledger, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), nil)
			hash, err := svc.HashPassword(password)
			if err != nil {
				return err
			}
			res, err := store.SeedHalfway(cmd.Context(), ledger, hash, day)
			if err != nil {
				return err
			}
			printf(cmd, "Seeded %s (id %s): %d tasks, %d completion rows, cycle %s to %s\n",
				res.User.Username, res.User.UserID, len(res.Tasks), res.Completions,
				res.Tasks[0].CycleStart, res.Tasks[0].CycleEnd)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", defaultSeedPassword, "password for the demo user")
	cmd.Flags().StringVar(&date, "date", "", "treat this YYYY-MM-DD as today")
	return cmd
}
