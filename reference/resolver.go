package reference

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/spreadsheet"
	"go.uber.org/zap"
)

// Source exposes the state of the running scenario to the resolver
type Source interface {
	// Dataset returns the snapshot captured for phase, if any
	Dataset(phase Phase) (*dataset.File, bool)
	// Spreadsheet returns the scenario's test data index, if loaded
	Spreadsheet() (*spreadsheet.Index, bool)
}

// Resolved is the outcome of resolving a raw test data string
type Resolved struct {
	Value dataset.Value
	// Ref is nil when the raw string was a literal
	Ref *Reference
	// Deferred is set for row selector "i"; the caller iterates with ValueAt
	Deferred bool
	// Unresolved is set when an env reference names an unset variable
	Unresolved bool
}

// IsPlaceholder reports whether the raw string was a reference
func (r Resolved) IsPlaceholder() bool {
	return r.Ref != nil
}

// Text returns the value as text; null becomes the empty string
func (r Resolved) Text() string {
	return r.Value.Text()
}

// Err returns ErrUnresolvedReference for unset env references, nil otherwise
func (r Resolved) Err() error {
	if r.Unresolved && r.Ref != nil {
		return fmt.Errorf("%w: environment variable '%s' is not set", snape2e.ErrUnresolvedReference, r.Ref.EnvName)
	}

	return nil
}

// Resolver evaluates placeholders against the current scenario state
type Resolver struct {
	source    Source
	lookupEnv func(string) (string, bool)
	logger    *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger used for optional lookups
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLookupEnv replaces os.LookupEnv for env references
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookupEnv = lookup
		}
	}
}

// NewResolver creates a resolver reading from source
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		lookupEnv: os.LookupEnv,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve resolves raw. Literals come back unchanged as string values.
func (r *Resolver) Resolve(raw string) (Resolved, error) {
	if !IsPlaceholder(raw) {
		return Resolved{Value: dataset.String(raw)}, nil
	}

	ref, err := Parse(raw)
	if err != nil {
		return Resolved{}, err
	}

	return r.ResolveReference(ref)
}

// ResolveReference resolves a parsed reference
func (r *Resolver) ResolveReference(ref Reference) (Resolved, error) {
	if ref.IsEnv() {
		value, ok := r.lookupEnv(ref.EnvName)
		if !ok {
			r.logger.Debug("environment reference is not set", zap.String("reference", ref.Raw), zap.String("name", ref.EnvName))
			return Resolved{Value: dataset.Null, Ref: &ref, Unresolved: true}, nil
		}

		return Resolved{Value: dataset.String(value), Ref: &ref}, nil
	}

	if ref.Row.All() {
		return Resolved{Ref: &ref, Deferred: true}, nil
	}

	value, err := r.ValueAt(ref, ref.Row.Index())
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{Value: value, Ref: &ref}, nil
}

// ValueAt returns the value of ref's column at row, ignoring ref's own row selector
func (r *Resolver) ValueAt(ref Reference, row int) (dataset.Value, error) {
	snapshot, err := r.snapshot(ref)
	if err != nil {
		return dataset.Null, err
	}

	value, err := snapshot.Value(ref.ResultSet, row, ref.Column)
	if err != nil {
		return dataset.Null, fmt.Errorf("%s result set %d row %d: %w", ref.Phase, ref.ResultSet, row, err)
	}

	return value, nil
}

// RowCount returns the row count of ref's result set
func (r *Resolver) RowCount(ref Reference) (int, error) {
	snapshot, err := r.snapshot(ref)
	if err != nil {
		return 0, err
	}

	count, err := snapshot.RowCount(ref.ResultSet)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ref.Phase, err)
	}

	return count, nil
}

func (r *Resolver) snapshot(ref Reference) (*dataset.Snapshot, error) {
	if ref.IsEnv() {
		return nil, fmt.Errorf("%w: %q: env references have no dataset", snape2e.ErrInvalidReference, ref.Raw)
	}

	file, ok := r.source.Dataset(ref.Phase)
	if !ok || file == nil {
		return nil, fmt.Errorf("%w: %s", snape2e.ErrDatasetNotLoaded, ref.Phase)
	}

	snapshot, err := file.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Phase, err)
	}

	return snapshot, nil
}

// ParseTestData resolves a test data cell to text. Null and unset env values become "".
// Row selector "i" is rejected because a single input value is expected.
func (r *Resolver) ParseTestData(raw string) (string, error) {
	resolved, err := r.Resolve(raw)
	if err != nil {
		return "", err
	}

	if resolved.Deferred {
		return "", fmt.Errorf("%w: %q: row selector [i] needs an iterating comparison", snape2e.ErrInvalidReference, raw)
	}

	return resolved.Text(), nil
}

// RawRowData returns the unresolved spreadsheet cell for rowName in the selected column
func (r *Resolver) RawRowData(rowName string) (string, bool, error) {
	ix, ok := r.source.Spreadsheet()
	if !ok || ix == nil {
		return "", false, fmt.Errorf("%w: spreadsheet not loaded", snape2e.ErrNoContext)
	}

	return ix.Value(rowName)
}

// RowData looks up rowName in the selected spreadsheet column and resolves the cell.
// An empty cell yields a null value.
func (r *Resolver) RowData(rowName string) (Resolved, error) {
	raw, ok, err := r.RawRowData(rowName)
	if err != nil {
		return Resolved{}, err
	}

	if !ok {
		return Resolved{Value: dataset.Null}, nil
	}

	return r.Resolve(raw)
}

// OptionalRowData behaves like RowData but logs a missing row and returns null
// instead of failing. It is the lookup used while expanding context references.
func (r *Resolver) OptionalRowData(rowName string) (Resolved, error) {
	resolved, err := r.RowData(rowName)
	if errors.Is(err, snape2e.ErrRowNotFound) {
		r.logger.Warn("row not found for name", zap.String("row", rowName))
		return Resolved{Value: dataset.Null}, nil
	}

	return resolved, err
}

var contextRef = regexp.MustCompile(`\$\{__Context\((.*?)\)\}`)

// ExpandContext substitutes every ${__Context(phase.rowName)} in text with the
// spreadsheet value of rowName in the selected column. Missing values become "".
func (r *Resolver) ExpandContext(text string) (string, error) {
	var firstErr error

	expanded := contextRef.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}

		inner := contextRef.FindStringSubmatch(match)[1]

		keys := strings.Split(inner, ".")
		if len(keys) != 2 || keys[1] == "" {
			firstErr = invalid(match, inner, "expected phase.columnKey")
			return match
		}

		if _, err := parsePhase(match, keys[0]); err != nil {
			firstErr = err
			return match
		}

		resolved, err := r.OptionalRowData(keys[1])
		if err != nil {
			firstErr = err
			return match
		}

		if resolved.Deferred {
			firstErr = fmt.Errorf("%w: %q: row selector [i] cannot be embedded", snape2e.ErrInvalidReference, match)
			return match
		}

		return resolved.Text()
	})

	if firstErr != nil {
		return "", firstErr
	}

	return expanded, nil
}

var envRef = regexp.MustCompile(`\$\{__env\.([^}]+)\}`)

// ExpandEnv substitutes every ${__env.NAME} embedded in text. Unset
// variables become "".
func (r *Resolver) ExpandEnv(text string) (string, error) {
	var firstErr error

	expanded := envRef.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}

		resolved, err := r.Resolve(match)
		if err != nil {
			firstErr = err
			return match
		}

		if resolved.Unresolved {
			r.logger.Warn("environment reference is not set", zap.String("reference", match))
		}

		return resolved.Text()
	})

	if firstErr != nil {
		return "", firstErr
	}

	return expanded, nil
}
