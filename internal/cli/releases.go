package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventfilter/internal/store"
)

// ReleasesOptions holds flags for the releases commands.
type ReleasesOptions struct {
	*RootOptions
	Organization int64
	Projects     []string
	Version      string
	Environments []string
	Adopted      bool
	Unadopted    bool
	Limit        int
}

// ReleaseAdded is the result of releases add.
type ReleaseAdded struct {
	ID         int64   `json:"id"`
	Version    string  `json:"version"`
	ProjectIDs []int64 `json:"project_ids"`
}

// ReleaseEntry is one release listed by releases list.
type ReleaseEntry struct {
	ID        int64  `json:"id"`
	Version   string `json:"version"`
	Package   string `json:"package,omitempty"`
	Semver    bool   `json:"semver"`
	BuildCode string `json:"build_code,omitempty"`
}

// NewReleasesCommand creates the releases command group.
func NewReleasesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReleasesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "Manage the release store",
	}
	cmd.PersistentFlags().Int64Var(&opts.Organization, "org", 0, "organization id")

	cmd.AddCommand(newReleasesAddCommand(opts))
	cmd.AddCommand(newReleasesListCommand(opts))
	return cmd
}

func newReleasesAddCommand(opts *ReleasesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a release",
		Long: `Add a release to the store, linked to projects and optionally to
environments with an adoption state.

Projects and environments are created by name if they do not exist.

Examples:
  eventfilter releases add --org 1 --project backend --version app@1.2.0
  eventfilter releases add --org 1 --project backend --version app@1.2.0 --environment production --adopted`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleasesAdd(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Projects, "project", nil, "project slugs the release belongs to")
	cmd.Flags().StringVar(&opts.Version, "version", "", "release version, e.g. app@1.2.0+42")
	cmd.Flags().StringSliceVar(&opts.Environments, "environment", nil, "environment names the release is deployed to")
	cmd.Flags().BoolVar(&opts.Adopted, "adopted", false, "mark the release adopted in its environments")
	cmd.Flags().BoolVar(&opts.Unadopted, "unadopted", false, "mark the release unadopted in its environments")
	return cmd
}

func newReleasesListCommand(opts *ReleasesOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List releases, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleasesList(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of releases to list")
	return cmd
}

func runReleasesAdd(opts *ReleasesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	switch {
	case opts.Organization == 0:
		return formatter.CommandError(ErrCodeInvalidOption, "--org is required")
	case opts.Version == "":
		return formatter.CommandError(ErrCodeInvalidOption, "--version is required")
	case len(opts.Projects) == 0:
		return formatter.CommandError(ErrCodeInvalidOption, "at least one --project is required")
	case (opts.Adopted || opts.Unadopted) && len(opts.Environments) == 0:
		return formatter.CommandError(ErrCodeInvalidOption, "--adopted and --unadopted need an --environment")
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	release := store.NewRelease{Version: opts.Version}
	envIDs := make([]int64, 0, len(opts.Environments))
	for _, name := range opts.Environments {
		id, err := st.CreateEnvironment(ctx, opts.Organization, name)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, err.Error())
		}
		envIDs = append(envIDs, id)
	}
	for _, slug := range opts.Projects {
		projectID, err := st.CreateProject(ctx, opts.Organization, slug)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, err.Error())
		}
		formatter.VerboseLog("Project %s has id %d", slug, projectID)
		release.ProjectIDs = append(release.ProjectIDs, projectID)
		for _, envID := range envIDs {
			release.Environments = append(release.Environments, store.ReleaseEnvironment{
				ProjectID:     projectID,
				EnvironmentID: envID,
				Adopted:       opts.Adopted,
				Unadopted:     opts.Unadopted,
			})
		}
	}

	id, err := st.AddRelease(ctx, opts.Organization, release)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	opts.Logger.Info("release added", "org", opts.Organization, "version", opts.Version, "id", id)

	added := ReleaseAdded{ID: id, Version: opts.Version, ProjectIDs: release.ProjectIDs}
	if formatter.Format == "json" {
		return formatter.Success(added)
	}
	fmt.Fprintf(formatter.Writer, "✓ Added release %s (id %d)\n", added.Version, added.ID)
	return nil
}

func runReleasesList(opts *ReleasesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Organization == 0 {
		return formatter.CommandError(ErrCodeInvalidOption, "--org is required")
	}
	if opts.Limit <= 0 {
		return formatter.CommandError(ErrCodeInvalidOption, "--limit must be positive")
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	rows, err := st.ListReleases(ctx, opts.Organization, opts.Limit)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}

	entries := make([]ReleaseEntry, len(rows))
	for i, r := range rows {
		entries[i] = ReleaseEntry{ID: r.ID, Version: r.Version, Package: r.Package, Semver: r.Semver, BuildCode: r.BuildCode}
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No releases found.")
		return nil
	}
	for _, e := range entries {
		kind := "plain"
		if e.Semver {
			kind = "semver"
		}
		fmt.Fprintf(formatter.Writer, "%d\t%s\t%s\n", e.ID, e.Version, kind)
	}
	return nil
}
