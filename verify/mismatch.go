package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/shibukawa/snape2e"
)

var (
	fieldHeaderFmt    = color.New(color.FgBlue, color.Bold).SprintfFunc()
	legendExpectedFmt = color.New(color.FgGreen).SprintFunc()
	legendActualFmt   = color.New(color.FgRed).SprintFunc()
	positionFmt       = color.New(color.FgBlue, color.Bold).SprintfFunc()
	expectValueFmt    = color.New(color.FgGreen).SprintfFunc()
	actualValueFmt    = color.New(color.FgRed).SprintfFunc()
)

// Mismatch is one offending position of a comparison
type Mismatch struct {
	// Position is the UI index, the dataset row, or the sorted index for set comparisons
	Position int
	Expected string
	Actual   string
}

// MismatchError reports every mismatched position of a verification
type MismatchError struct {
	Field      string
	Raw        string
	Mode       Mode
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	if e == nil {
		return snape2e.ErrVerificationMismatch.Error()
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s: field '%s' (%s", snape2e.ErrVerificationMismatch, e.Field, e.Mode)

	if e.Raw != "" {
		fmt.Fprintf(&b, ", %s", e.Raw)
	}

	b.WriteString(")")

	for i, m := range e.Mismatches {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}

		fmt.Fprintf(&b, "[%d] expected %q, got %q", m.Position, m.Expected, m.Actual)
	}

	return b.String()
}

// Unwrap lets errors.Is match ErrVerificationMismatch
func (e *MismatchError) Unwrap() error {
	return snape2e.ErrVerificationMismatch
}

// AsMismatch extracts a MismatchError from the error chain
func AsMismatch(err error) (*MismatchError, bool) {
	var me *MismatchError
	if errors.As(err, &me) {
		return me, true
	}

	return nil, false
}

// FormatMismatch renders a mismatch as a colored expected/actual listing
func FormatMismatch(e *MismatchError) string {
	if e == nil || len(e.Mismatches) == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString(fieldHeaderFmt("Field: %s (%s)\n", e.Field, e.Mode))

	if e.Raw != "" {
		b.WriteString(fieldHeaderFmt("Reference: %s\n", e.Raw))
	}

	b.WriteString(legendExpectedFmt("+ Expected\n"))
	b.WriteString(legendActualFmt("- Actual\n"))

	for _, m := range e.Mismatches {
		b.WriteString(positionFmt("[%d]\n", m.Position))
		b.WriteString(expectValueFmt("+ %s\n", formatScalar(m.Expected)))
		b.WriteString(actualValueFmt("- %s\n", formatScalar(m.Actual)))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatScalar(s string) string {
	if s == "" || strings.TrimSpace(s) != s {
		return fmt.Sprintf("%q", s)
	}

	return s
}

// ErrUnknownMode is returned by ParseMode for unrecognized names
var ErrUnknownMode = errors.New("unknown verification mode")
