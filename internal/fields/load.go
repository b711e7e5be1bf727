package fields

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed default.cue
var defaultCUE []byte

// LoadError is a registry validation error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// document mirrors #Registry for decoding.
type document struct {
	ArrayFields       []string              `json:"array_fields"`
	NoConversion      []string              `json:"no_conversion"`
	TimestampFields   []string              `json:"timestamp_fields"`
	Aliases           map[string]Expression `json:"aliases"`
	Functions         []string              `json:"functions"`
	TransactionStatus map[string]int64      `json:"transaction_status"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the embedded default registry. It is loaded once and
// shared; callers must not modify it.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load("default.cue", defaultCUE)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("fields: embedded default registry is invalid: %v", defaultErr))
	}
	return defaultRegistry
}

// LoadFile reads and validates a registry from a CUE file.
func LoadFile(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Load(path, src)
}

// Load compiles CUE source, unifies it with the #Registry schema and
// decodes the result. filename is used in error positions only.
func Load(filename string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Registry")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc document
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}

	for name, expr := range doc.Aliases {
		if expr.Column == name {
			return nil, &LoadError{
				Field:   "aliases." + name,
				Message: "alias must not map a field to itself",
				Pos:     v.LookupPath(cue.MakePath(cue.Str("aliases"), cue.Str(name))).Pos(),
			}
		}
	}

	return newRegistry(doc), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
