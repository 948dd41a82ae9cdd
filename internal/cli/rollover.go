package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/internal/rollover"
)

func newRolloverCmd() *cobra.Command {
	var date string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Run one rollover pass now",
		Long:  "Create a pending completion row dated today (or --date) for every active task. Existing rows are left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := today(date)
			if err != nil {
				return err
			}
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			ledger, err := attach(cmd, cfg.Store)
			if err != nil {
				return err
			}
			defer ledger.Detach()

			sched, err := rollover.New(ledger, logger, rollover.WithSchedule(cfg.RolloverSchedule))
			if err != nil {
				return err
			}
			res, err := sched.RunOnce(cmd.Context(), day)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printf(cmd, "Rollover %s: %d active, %d created, %d existing, %d failed\n",
				day, res.Active, res.Created, res.Existing, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "rollover date as YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	return cmd
}
