package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/eventfilter/internal/fields"
)

// RegistrySummary describes a valid field registry.
type RegistrySummary struct {
	Source    string   `json:"source"`
	Aliases   []string `json:"aliases"`
	Functions []string `json:"functions"`
	Statuses  []string `json:"statuses"`
}

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the field registry",
	}

	check := &cobra.Command{
		Use:   "check [file.cue]",
		Short: "Validate a field registry",
		Long: `Validate a CUE field registry against the registry schema.

Without an argument the configured registry is checked, or the embedded
default when none is configured.

Exit codes:
  0 - Registry is valid
  2 - Registry is invalid or missing`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.Registry
			if len(args) == 1 {
				path = args[0]
			}
			return runRegistryCheck(rootOpts, path, cmd)
		},
	}

	cmd.AddCommand(check)
	return cmd
}

func runRegistryCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	registry := fields.Default()
	source := "embedded default"
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("registry file not found: %s", path))
		}
		var err error
		registry, err = fields.LoadFile(path)
		if err != nil {
			return outputRegistryError(formatter, err)
		}
		source = path
	}
	formatter.VerboseLog("Checked registry %s", source)

	summary := RegistrySummary{
		Source:    source,
		Aliases:   registry.Aliases(),
		Functions: registry.Functions(),
		Statuses:  registry.StatusNames(),
	}
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Registry %s is valid\n", summary.Source)
	fmt.Fprintf(formatter.Writer, "  %d alias(es), %d function(s), %d transaction status(es)\n",
		len(summary.Aliases), len(summary.Functions), len(summary.Statuses))
	return nil
}

// outputRegistryError reports a registry validation error with its CUE
// position when one is known.
func outputRegistryError(formatter *OutputFormatter, err error) error {
	var details *ErrorDetails
	var loadErr *fields.LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		details = &ErrorDetails{
			File:   loadErr.Pos.Filename(),
			Line:   loadErr.Pos.Line(),
			Column: loadErr.Pos.Column(),
		}
	}
	return formatter.CommandErrorAt(ErrCodeRegistry, err.Error(), details)
}
