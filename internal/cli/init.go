package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/internal/paths"
	"github.com/mesh-intelligence/rituo/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize rituo configuration and storage",
		Long:  "Write a default config.yaml if missing, then create the database and apply migrations.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	configPath := filepath.Join(configDir, configFileExt)
	written, err := writeConfigIfMissing(configPath, flags.dataDir)
	if err != nil {
		return err
	}
	if written {
		printf(cmd, "Wrote %s\n", configPath)
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	ledger := store.NewBackend()
	if err := ledger.Attach(cmd.Context(), cfg.Store); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := ledger.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	printf(cmd, "Rituo initialized (%s store)\n", cfg.Store.Driver)
	return nil
}
