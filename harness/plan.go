package harness

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/shibukawa/snape2e/verify"
)

// ErrInvalidPlan is returned for plans that fail validation
var ErrInvalidPlan = errors.New("invalid scenario plan")

// Plan is a scenario described in YAML. Every test case runs the same
// steps against its own spreadsheet column.
type Plan struct {
	Name      string   `yaml:"name"`
	Dir       string   `yaml:"dir"`
	URL       string   `yaml:"url"`
	TestCases []string `yaml:"test_cases"`
	Parallel  int      `yaml:"parallel"`
	Steps     []Step   `yaml:"steps"`
}

// Step holds exactly one action
type Step struct {
	Navigate   string        `yaml:"navigate,omitempty"`
	Click      string        `yaml:"click,omitempty"`
	Fill       *FillStep     `yaml:"fill,omitempty"`
	Wait       time.Duration `yaml:"wait,omitempty"`
	Capture    string        `yaml:"capture,omitempty"`
	Verify     *VerifyStep   `yaml:"verify,omitempty"`
	Screenshot string        `yaml:"screenshot,omitempty"`
}

// FillStep types the test data of Row into Selector
type FillStep struct {
	Selector string `yaml:"selector"`
	Row      string `yaml:"row"`
}

// VerifyStep compares the elements of Selector with the test data of Row
type VerifyStep struct {
	Selector  string `yaml:"selector"`
	Row       string `yaml:"row"`
	Mode      string `yaml:"mode,omitempty"`
	Date      bool   `yaml:"date,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`
}

// LoadPlan reads and validates a plan file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	return ParsePlan(data)
}

// ParsePlan parses and validates plan YAML. Unknown keys are rejected.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan

	if err := yaml.UnmarshalWithOptions(data, &plan, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if err := plan.validate(); err != nil {
		return nil, err
	}

	if plan.Parallel <= 0 {
		plan.Parallel = 1
	}

	return &plan, nil
}

func (p *Plan) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}

	if len(p.TestCases) == 0 {
		return fmt.Errorf("%w: test_cases is empty", ErrInvalidPlan)
	}

	for i, step := range p.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: steps[%d]: %w", ErrInvalidPlan, i, err)
		}
	}

	return nil
}

func (s Step) actions() int {
	count := 0

	for _, set := range []bool{
		s.Navigate != "",
		s.Click != "",
		s.Fill != nil,
		s.Wait != 0,
		s.Capture != "",
		s.Verify != nil,
		s.Screenshot != "",
	} {
		if set {
			count++
		}
	}

	return count
}

func (s Step) validate() error {
	if n := s.actions(); n != 1 {
		return fmt.Errorf("expected exactly one action, got %d", n)
	}

	switch {
	case s.Capture != "" && s.Capture != "before" && s.Capture != "after":
		return fmt.Errorf("capture must be before or after, got '%s'", s.Capture)
	case s.Fill != nil && (s.Fill.Selector == "" || s.Fill.Row == ""):
		return errors.New("fill needs selector and row")
	case s.Verify != nil && (s.Verify.Selector == "" || s.Verify.Row == ""):
		return errors.New("verify needs selector and row")
	case s.Wait < 0:
		return errors.New("wait must be positive")
	}

	if s.Verify != nil {
		if _, err := verify.ParseMode(s.Verify.Mode); err != nil {
			return err
		}
	}

	return nil
}

// String describes the step for summaries
func (s Step) String() string {
	switch {
	case s.Navigate != "":
		return "navigate " + s.Navigate
	case s.Click != "":
		return "click " + s.Click
	case s.Fill != nil:
		return fmt.Sprintf("fill %s <- %s", s.Fill.Selector, s.Fill.Row)
	case s.Wait != 0:
		return "wait " + s.Wait.String()
	case s.Capture != "":
		return "capture " + s.Capture
	case s.Verify != nil:
		return fmt.Sprintf("verify %s = %s", s.Verify.Selector, s.Verify.Row)
	case s.Screenshot != "":
		return "screenshot " + s.Screenshot
	default:
		return "empty"
	}
}

// resolveURL joins a relative navigation target with the plan's base URL
func (p *Plan) resolveURL(target string) string {
	if p.URL == "" || strings.Contains(target, "://") {
		return target
	}

	return strings.TrimRight(p.URL, "/") + "/" + strings.TrimLeft(target, "/")
}
