package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/eventfilter/internal/compiler"
	"github.com/roach88/eventfilter/internal/querysql"
	"github.com/roach88/eventfilter/internal/search"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Organization   int64
	Projects       []int64
	EnvironmentIDs []int64
	Environments   []string
}

// CompiledClause is a rendered where or having clause.
type CompiledClause struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// CompileOutput is the compile command's result.
type CompileOutput struct {
	Where       CompiledClause `json:"where"`
	Having      CompiledClause `json:"having"`
	ProjectIDs  []int64        `json:"project_ids"`
	GroupIDs    []int64        `json:"group_ids"`
	Fingerprint string         `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <terms.yaml>",
		Short: "Compile a search term sequence to SQL",
		Long: `Compile a search term sequence to where and having SQL conditions.

The terms file holds a YAML list of terms, aggregate terms, groups and
AND/OR connectives. Release, project and issue filters are resolved
against the configured release store.

Exit codes:
  0 - Query compiled
  1 - Query is invalid
  2 - Command error (missing file, store unavailable, etc.)

Examples:
  eventfilter compile terms.yaml --org 1 --project 10
  eventfilter compile terms.yaml --org 1 --environment-id 5 --environment production --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Organization, "org", 0, "organization id")
	cmd.Flags().Int64SliceVar(&opts.Projects, "project", nil, "project ids in scope")
	cmd.Flags().Int64SliceVar(&opts.EnvironmentIDs, "environment-id", nil, "environment ids in scope")
	cmd.Flags().StringSliceVar(&opts.Environments, "environment", nil, "environment names in scope")

	return cmd
}

func runCompile(opts *CompileOptions, termsFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := os.ReadFile(termsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("terms file not found: %s", termsFile))
		}
		return formatter.CommandError(ErrCodeLoadFailed, fmt.Sprintf("reading terms file: %v", err))
	}
	items, err := search.DecodeYAML(data)
	if err != nil {
		return formatter.CommandErrorAt(ErrCodeLoadFailed, fmt.Sprintf("parsing terms file: %v", err), &ErrorDetails{File: termsFile})
	}
	formatter.VerboseLog("Loaded %d search item(s) from %s", len(items), termsFile)

	registry, err := loadRegistry(opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeRegistry, err.Error())
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	c := newCompiler(opts.RootOptions, st, registry)
	result, err := c.Compile(ctx, items, compiler.Params{
		OrganizationID: opts.Organization,
		ProjectIDs:     opts.Projects,
		EnvironmentIDs: opts.EnvironmentIDs,
		Environments:   opts.Environments,
	})
	if err != nil {
		var qe *compiler.QueryError
		if errors.As(err, &qe) {
			return formatter.QueryError(qe)
		}
		return formatter.CommandError(ErrCodeStore, err.Error())
	}

	out, err := renderCompiled(result)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err.Error())
	}
	return outputCompileSuccess(formatter, out)
}

// renderCompiled renders both trees to parameterized SQL.
func renderCompiled(result *compiler.Result) (*CompileOutput, error) {
	sql := querysql.NewSQLCompiler()

	where, whereArgs, err := sql.Compile(result.Where)
	if err != nil {
		return nil, fmt.Errorf("rendering where: %w", err)
	}
	having, havingArgs, err := sql.Compile(result.Having)
	if err != nil {
		return nil, fmt.Errorf("rendering having: %w", err)
	}
	fingerprint, err := result.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprinting query: %w", err)
	}

	return &CompileOutput{
		Where:       CompiledClause{SQL: where, Args: orEmpty(whereArgs)},
		Having:      CompiledClause{SQL: having, Args: orEmpty(havingArgs)},
		ProjectIDs:  orEmpty(result.ProjectIDs),
		GroupIDs:    orEmpty(result.GroupIDs),
		Fingerprint: fingerprint,
	}, nil
}

// outputCompileSuccess outputs the compiled query.
func outputCompileSuccess(formatter *OutputFormatter, out *CompileOutput) error {
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "where:  %s\n", out.Where.SQL)
	fmt.Fprintf(w, "        args %v\n", out.Where.Args)
	fmt.Fprintf(w, "having: %s\n", out.Having.SQL)
	fmt.Fprintf(w, "        args %v\n", out.Having.Args)
	fmt.Fprintf(w, "project_ids: %v\n", out.ProjectIDs)
	fmt.Fprintf(w, "group_ids:   %v\n", out.GroupIDs)
	fmt.Fprintf(w, "fingerprint: %s\n", out.Fingerprint)
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
