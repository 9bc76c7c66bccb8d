// Package reference parses and resolves placeholders written in test data.
//
//	placeholder    := "${__" inner "}"
//	inner          := env_ref | data_ref
//	env_ref        := "env." VAR_NAME
//	data_ref       := phase ".[" resultSetIndex "].[" rowSelector "]." columnKey
//	phase          := "beforeSteps" | "afterSteps"
//	rowSelector    := non-negative integer | "i"
//	context_ref    := "${__Context(" phase "." columnKey ")}"
package reference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/snape2e"
)

// Sentinel is the prefix that marks a placeholder
const Sentinel = "${__"

// Phase names which captured dataset a reference reads from
type Phase string

const (
	PhaseBefore Phase = "beforeSteps"
	PhaseAfter  Phase = "afterSteps"
	PhaseEnv    Phase = "env"
)

// RowSelector is either a literal row index or "every row"
type RowSelector struct {
	all   bool
	index int
}

// AllRows selects every row; iteration is left to the caller
var AllRows = RowSelector{all: true}

// Row selects a single row
func Row(index int) RowSelector {
	return RowSelector{index: index}
}

// All reports whether the selector is the "i" token
func (s RowSelector) All() bool { return s.all }

// Index returns the literal row index
func (s RowSelector) Index() int { return s.index }

func (s RowSelector) String() string {
	if s.all {
		return "[i]"
	}

	return "[" + strconv.Itoa(s.index) + "]"
}

// Reference is a parsed placeholder
type Reference struct {
	Raw       string
	Phase     Phase
	ResultSet int
	Row       RowSelector
	Column    string
	// EnvName is set for env references only
	EnvName string
}

// IsEnv reports whether the reference reads the process environment
func (r Reference) IsEnv() bool {
	return r.Phase == PhaseEnv
}

func (r Reference) String() string {
	if r.IsEnv() {
		return Sentinel + "env." + r.EnvName + "}"
	}

	return fmt.Sprintf("%s%s.[%d].%s.%s}", Sentinel, r.Phase, r.ResultSet, r.Row, r.Column)
}

// IsPlaceholder reports whether raw starts with the sentinel and has a closing brace
func IsPlaceholder(raw string) bool {
	return strings.HasPrefix(raw, Sentinel) && strings.LastIndex(raw, "}") >= len(Sentinel)
}

// Parse parses a placeholder string
func Parse(raw string) (Reference, error) {
	if !IsPlaceholder(raw) {
		return Reference{}, invalid(raw, raw, "not a placeholder")
	}

	inner := raw[len(Sentinel):strings.LastIndex(raw, "}")]

	if name, ok := strings.CutPrefix(inner, "env."); ok {
		if name == "" {
			return Reference{}, invalid(raw, inner, "empty environment variable name")
		}

		return Reference{Raw: raw, Phase: PhaseEnv, EnvName: name}, nil
	}

	tokens := strings.Split(inner, ".")
	if len(tokens) != 4 {
		return Reference{}, invalid(raw, inner, fmt.Sprintf("expected 4 segments, got %d", len(tokens)))
	}

	phase, err := parsePhase(raw, tokens[0])
	if err != nil {
		return Reference{}, err
	}

	resultSetToken, err := unbracket(raw, tokens[1])
	if err != nil {
		return Reference{}, err
	}

	resultSet, err := parseIndex(raw, tokens[1], resultSetToken)
	if err != nil {
		return Reference{}, err
	}

	rowToken, err := unbracket(raw, tokens[2])
	if err != nil {
		return Reference{}, err
	}

	row := AllRows
	if rowToken != "i" {
		index, err := parseIndex(raw, tokens[2], rowToken)
		if err != nil {
			return Reference{}, err
		}

		row = Row(index)
	}

	if tokens[3] == "" {
		return Reference{}, invalid(raw, tokens[3], "empty column key")
	}

	return Reference{
		Raw:       raw,
		Phase:     phase,
		ResultSet: resultSet,
		Row:       row,
		Column:    tokens[3],
	}, nil
}

func parsePhase(raw, token string) (Phase, error) {
	switch Phase(token) {
	case PhaseBefore, PhaseAfter:
		return Phase(token), nil
	default:
		return "", invalid(raw, token, "phase must be beforeSteps or afterSteps")
	}
}

func unbracket(raw, token string) (string, error) {
	if len(token) < 3 || token[0] != '[' || token[len(token)-1] != ']' {
		return "", invalid(raw, token, "expected bracketed token like [0]")
	}

	return token[1 : len(token)-1], nil
}

func parseIndex(raw, token, digits string) (int, error) {
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, invalid(raw, token, "expected non-negative integer")
		}
	}

	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, invalid(raw, token, err.Error())
	}

	return index, nil
}

func invalid(raw, token, reason string) error {
	return fmt.Errorf("%w: %q: token %q: %s", snape2e.ErrInvalidReference, raw, token, reason)
}
