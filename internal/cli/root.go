// Package cli implements the rituo command-line interface: the API server
// and the operator commands around the ledger.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
}

var flags rootFlags

// NewRootCmd creates the top-level "rituo" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rituo",
		Short: "Habit tracking in fixed 30-day cycles",
		Long:  "Rituo tracks daily habits in 30-day cycles and serves the\ntracking API, the midnight rollover and the analytics views.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "SQLite data directory (default: platform data dir)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newServeCmd(),
		newMigrateCmd(),
		newRolloverCmd(),
		newSeedCmd(),
		newExportCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode separates caller mistakes from system failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrScheduleInvalid),
		errors.Is(err, types.ErrDriverUnknown),
		errors.Is(err, types.ErrDriverEmpty),
		errors.Is(err, types.ErrDSNEmpty),
		errors.Is(err, types.ErrJWTSecretMissing),
		errors.Is(err, types.ErrDurationInvalid):
		return exitUserError
	default:
		return exitSysError
	}
}

// printf writes to the command's stdout.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
