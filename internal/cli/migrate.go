package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/internal/store"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			ledger, err := attach(cmd, cfg.Store)
			if err != nil {
				return err
			}
			defer ledger.Detach()

			version, err := ledger.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "Schema at version %d (%s)\n", version, cfg.Store.Driver)
			return nil
		},
	}
}

// attach opens the ledger; pending migrations are applied on the way.
func attach(cmd *cobra.Command, cfg types.StoreConfig) (*store.Backend, error) {
	ledger := store.NewBackend()
	if err := ledger.Attach(cmd.Context(), cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	return ledger, nil
}
