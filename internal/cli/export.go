package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

func newExportCmd() *cobra.Command {
	var username, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one user's tasks, completions and notes as JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return types.Errorf(types.ErrValidation, "export", "--username is required")
			}
			dir, err := filepath.Abs(out)
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

			u, err := ledger.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			res, err := ledger.ExportUser(cmd.Context(), u.UserID, dir)
			if err != nil {
				return err
			}
			printf(cmd, "Exported %s to %s: %d tasks, %d completions, %d notes\n",
				username, dir, res.Tasks, res.Completions, res.Notes)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "user to export")
	cmd.Flags().StringVar(&out, "out", ".", "output directory")
	return cmd
}
