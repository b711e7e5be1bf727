package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateResult reports the schema version after migrating.
type MigrateResult struct {
	Driver  string `json:"driver"`
	Version int64  `json:"version"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply release store migrations",
		Long: `Apply all pending migrations to the configured release store.

Examples:
  eventfilter migrate --dsn ./releases.db
  EVENTFILTER_DATABASE_DRIVER=pgx EVENTFILTER_DATABASE_DSN=postgres://... eventfilter migrate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ctx := cmd.Context()
	// Open applies pending migrations.
	st, err := openStore(ctx, opts)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	version, err := st.Version(ctx)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	opts.Logger.Info("migrations applied", "driver", opts.Config.Database.Driver, "version", version)

	result := MigrateResult{Driver: opts.Config.Database.Driver, Version: version}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Release store at schema version %d\n", result.Version)
	return nil
}
