// Package verify compares values observed in the UI with expected values
// taken from test data, resolving references along the way.
package verify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/reference"
	"go.uber.org/zap"
)

// Mode selects the comparison policy
type Mode int

const (
	// Exact compares every UI value with one expected value. With row
	// selector "i" it pairs UI value k with dataset row k.
	Exact Mode = iota
	// RowIterated requires every expected row k < n to match some UI value, at any position
	RowIterated
	// Positional pairs UI value k with dataset row k
	Positional
	// UnorderedSet compares the sorted expected values with the sorted UI values
	UnorderedSet
	// SeparatedSet splits both sides on the separator and compares sorted tokens
	SeparatedSet
)

var modeNames = map[Mode]string{
	Exact:        "exact",
	RowIterated:  "row_iterated",
	Positional:   "positional",
	UnorderedSet: "unordered",
	SeparatedSet: "separated",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name. The empty string means Exact.
func ParseMode(name string) (Mode, error) {
	if name == "" {
		return Exact, nil
	}

	for mode, n := range modeNames {
		if strings.EqualFold(n, name) {
			return mode, nil
		}
	}

	return Exact, fmt.Errorf("%w: '%s'", ErrUnknownMode, name)
}

// Equality selects how a single pair of values is compared
type Equality int

const (
	EqualExact Equality = iota
	// EqualDate renders expected ISO instants as locale dates before comparing
	EqualDate
)

// Resolver is the reference resolution the engine depends on
type Resolver interface {
	Resolve(raw string) (reference.Resolved, error)
	RowCount(ref reference.Reference) (int, error)
	ValueAt(ref reference.Reference, row int) (dataset.Value, error)
}

// Check describes one verification
type Check struct {
	// Field names the compared value in diagnostics, usually the spreadsheet row name
	Field    string
	Raw      string
	Mode     Mode
	Equality Equality
}

// Engine runs verifications
type Engine struct {
	resolver  Resolver
	dates     *DateFormatter
	separator string
	logger    *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithDateFormatter sets the formatter used for EqualDate
func WithDateFormatter(f *DateFormatter) Option {
	return func(e *Engine) {
		if f != nil {
			e.dates = f
		}
	}
}

// WithSeparator sets the token separator of SeparatedSet
func WithSeparator(separator string) Option {
	return func(e *Engine) {
		if separator != "" {
			e.separator = separator
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine
func New(resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:  resolver,
		dates:     NewDateFormatter("", "", nil),
		separator: ",",
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Verify checks ui against check.Raw. It returns nil on success, a
// *MismatchError listing every offending position, or a resolution error.
func (e *Engine) Verify(check Check, ui []string) error {
	resolved, err := e.resolver.Resolve(check.Raw)
	if err != nil {
		return fmt.Errorf("field '%s': %w", check.Field, err)
	}

	var mismatches []Mismatch

	if resolved.Deferred {
		expected, err := e.expectedRows(*resolved.Ref, len(ui), check.Equality)
		if err != nil {
			return fmt.Errorf("field '%s': %w", check.Field, err)
		}

		switch check.Mode {
		case RowIterated:
			mismatches = e.searchRows(check.Field, expected, ui)
		case UnorderedSet:
			mismatches = e.unordered(check.Field, expected, ui)
		case SeparatedSet:
			mismatches = e.pairwise(check.Field, expected, ui, e.sameTokens)
		default:
			mismatches = e.pairwise(check.Field, expected, ui, equalText)
		}
	} else {
		expected := e.normalize(resolved.Text(), check.Equality)

		equal := equalText
		if check.Mode == SeparatedSet {
			equal = e.sameTokens
		}

		mismatches = e.broadcast(check.Field, expected, ui, equal)
	}

	if len(mismatches) > 0 {
		return &MismatchError{
			Field:      check.Field,
			Raw:        rawIfPlaceholder(resolved, check.Raw),
			Mode:       check.Mode,
			Mismatches: mismatches,
		}
	}

	return nil
}

func rawIfPlaceholder(resolved reference.Resolved, raw string) string {
	if resolved.IsPlaceholder() {
		return raw
	}

	return ""
}

// expectedRows resolves rows 0..n-1 where n is the lesser of the dataset
// row count and the number of UI values
func (e *Engine) expectedRows(ref reference.Reference, uiCount int, eq Equality) ([]string, error) {
	count, err := e.resolver.RowCount(ref)
	if err != nil {
		return nil, err
	}

	n := min(count, uiCount)
	expected := make([]string, 0, n)

	for k := range n {
		value, err := e.resolver.ValueAt(ref, k)
		if err != nil {
			return nil, err
		}

		expected = append(expected, e.normalize(value.Text(), eq))
	}

	return expected, nil
}

func (e *Engine) normalize(value string, eq Equality) string {
	if eq == EqualDate && value != "" {
		return e.dates.Format(value)
	}

	return value
}

func (e *Engine) broadcast(field, expected string, ui []string, equal func(a, b string) bool) []Mismatch {
	var mismatches []Mismatch

	for k, actual := range ui {
		e.logger.Debug("compare", zap.String("field", field), zap.Int("position", k), zap.String("ui", actual), zap.String("expected", expected))

		if !equal(actual, expected) {
			mismatches = append(mismatches, Mismatch{Position: k, Expected: expected, Actual: actual})
		}
	}

	return mismatches
}

func (e *Engine) pairwise(field string, expected, ui []string, equal func(a, b string) bool) []Mismatch {
	var mismatches []Mismatch

	for k, want := range expected {
		e.logger.Debug("compare", zap.String("field", field), zap.Int("position", k), zap.String("ui", ui[k]), zap.String("expected", want))

		if !equal(ui[k], want) {
			mismatches = append(mismatches, Mismatch{Position: k, Expected: want, Actual: ui[k]})
		}
	}

	return mismatches
}

// searchRows accepts expected row k when any UI value equals it. A failed
// row reports the last UI value tried.
func (e *Engine) searchRows(field string, expected, ui []string) []Mismatch {
	var mismatches []Mismatch

	for k, want := range expected {
		found := false
		last := ""

		for _, actual := range ui {
			last = actual
			if actual == want {
				found = true
				break
			}
		}

		if found {
			e.logger.Debug("match found", zap.String("field", field), zap.Int("row", k), zap.String("expected", want))
			continue
		}

		e.logger.Debug("no match", zap.String("field", field), zap.Int("row", k), zap.String("last_ui", last), zap.String("expected", want))
		mismatches = append(mismatches, Mismatch{Position: k, Expected: want, Actual: last})
	}

	return mismatches
}

// unordered compares trimmed, sorted expected values with every trimmed,
// sorted UI value. No expected rows is a pass.
func (e *Engine) unordered(field string, expected, ui []string) []Mismatch {
	if len(expected) == 0 {
		return nil
	}

	want := sortedTrimmed(expected)
	got := sortedTrimmed(ui)

	e.logger.Debug("compare set", zap.String("field", field), zap.Strings("ui", got), zap.Strings("expected", want))

	if slices.Equal(want, got) {
		return nil
	}

	var mismatches []Mismatch

	for k := range max(len(want), len(got)) {
		var w, g string
		if k < len(want) {
			w = want[k]
		}

		if k < len(got) {
			g = got[k]
		}

		if k >= len(want) || k >= len(got) || w != g {
			mismatches = append(mismatches, Mismatch{Position: k, Expected: w, Actual: g})
		}
	}

	return mismatches
}

func (e *Engine) sameTokens(actual, expected string) bool {
	return slices.Equal(e.tokens(actual), e.tokens(expected))
}

func (e *Engine) tokens(value string) []string {
	return sortedTrimmed(strings.Split(value, e.separator))
}

func sortedTrimmed(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}

	slices.Sort(out)

	return out
}

func equalText(actual, expected string) bool {
	return actual == expected
}
