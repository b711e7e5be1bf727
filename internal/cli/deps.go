package cli

import (
	"context"

	"github.com/roach88/eventfilter/internal/compiler"
	"github.com/roach88/eventfilter/internal/fields"
	"github.com/roach88/eventfilter/internal/releases"
	"github.com/roach88/eventfilter/internal/store"
)

// openStore opens and migrates the configured release store.
func openStore(ctx context.Context, opts *RootOptions) (*store.Store, error) {
	return store.Open(ctx, opts.Config.Database.Driver, opts.Config.Database.DSN)
}

// loadRegistry returns the configured field registry, or the embedded
// default when none is configured.
func loadRegistry(opts *RootOptions) (*fields.Registry, error) {
	if opts.Config.Registry == "" {
		return fields.Default(), nil
	}
	return fields.LoadFile(opts.Config.Registry)
}

// newCompiler wires a compiler to the store.
func newCompiler(opts *RootOptions, st *store.Store, registry *fields.Registry) *compiler.Compiler {
	resolver := releases.NewResolver(st, releases.Options{
		MaxSearchReleases: opts.Config.MaxSearchReleases,
		Logger:            opts.Logger,
	})
	return compiler.New(compiler.Options{
		Registry: registry,
		Resolver: resolver,
		Projects: st,
		Groups:   st,
		Logger:   opts.Logger,
	})
}
