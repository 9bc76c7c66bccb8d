package sqlsource

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/shibukawa/snape2e"
)

// Section labels used by scenario setup scripts
const (
	BeforeSection = "beforeTestSteps"
	AfterSection  = "afterTestSteps"
)

// Script is a setup script split into labelled sections. A line starting
// with "--" opens a section named by the rest of the line.
type Script struct {
	Path     string
	sections map[string]string
	order    []string
}

// LoadScript reads and parses a setup script file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read setup script: %w", err)
	}

	script := ParseScript(string(data))
	script.Path = path

	return script, nil
}

// ParseScript splits text into labelled sections. Text before the first
// label is ignored; a repeated label keeps the last body.
func ParseScript(text string) *Script {
	script := &Script{sections: make(map[string]string)}

	var (
		label string
		body  strings.Builder
		open  bool
	)

	flush := func() {
		if !open {
			return
		}

		if _, seen := script.sections[label]; !seen {
			script.order = append(script.order, label)
		}

		script.sections[label] = strings.TrimSpace(body.String())
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "--"); ok {
			flush()

			label = strings.TrimSpace(rest)
			open = label != ""

			continue
		}

		if open {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}

	flush()

	return script
}

// Labels returns section labels in file order
func (s *Script) Labels() []string {
	return append([]string(nil), s.order...)
}

// Section returns the body of label
func (s *Script) Section(label string) (string, error) {
	body, ok := s.sections[label]
	if !ok {
		return "", fmt.Errorf("%w: '%s' in %s", snape2e.ErrStatementNotFound, label, s.Path)
	}

	return body, nil
}

// SplitStatements splits SQL text on semicolons outside quotes, comments and
// PostgreSQL dollar-quoted bodies ($$ ... $$, $fn$ ... $fn$). Empty statements
// are dropped.
func SplitStatements(text string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	push := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}

		current.Reset()
	}

	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '\'' || r == '"' || r == '`':
			end := closingQuote(runes, i, r)
			current.WriteString(string(runes[i : end+1]))
			i = end
		case r == '$' && dollarTag(runes, i) != "":
			tag := dollarTag(runes, i)
			end := closingDollarTag(runes, i+len([]rune(tag)), tag)
			current.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}

			i = end - 1
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := i + 2
			for end+1 < len(runes) && (runes[end] != '*' || runes[end+1] != '/') {
				end++
			}

			i = min(end+1, len(runes)-1)
		case r == ';':
			push()
		default:
			current.WriteRune(r)
		}
	}

	push()

	return statements
}

// closingQuote returns the index of the quote closing the one at start.
// A doubled quote is an escaped quote.
func closingQuote(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}

		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}

		return i
	}

	return len(runes) - 1
}

// dollarTag returns the dollar-quote opener ("$$" or "$tag$") starting at
// start, or "" when the "$" begins a positional parameter or plain text
func dollarTag(runes []rune, start int) string {
	for i := start + 1; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '$':
			return string(runes[start : i+1])
		case r == '_' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > start+1:
		default:
			return ""
		}
	}

	return ""
}

// closingDollarTag returns the index just past the tag closing a dollar
// quote whose body starts at from, or len(runes) when it is unterminated
func closingDollarTag(runes []rune, from int, tag string) int {
	body := string(runes[from:])

	idx := strings.Index(body, tag)
	if idx < 0 {
		return len(runes)
	}

	return from + len([]rune(body[:idx])) + len([]rune(tag))
}
