package harness

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shibukawa/snape2e/reference"
	"github.com/shibukawa/snape2e/scenario"
	"github.com/shibukawa/snape2e/ui"
	"github.com/shibukawa/snape2e/verify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DriverFactory opens a UI driver for one test case
type DriverFactory func(ctx context.Context) (ui.Driver, error)

// CaseResult is the outcome of one test case of a plan
type CaseResult struct {
	Scenario string
	TestCase string
	Success  bool
	Duration time.Duration
	// Step is the failing step, empty when setup failed or the case passed
	Step  string
	Error error
}

// Summary aggregates a plan run
type Summary struct {
	RunID         uuid.UUID
	Plan          string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	TotalDuration time.Duration
	Results       []CaseResult
}

// RunPlan runs every test case of plan. Cases run on up to plan.Parallel
// workers; each worker owns its slot, driver and execution context.
func (r *Runner) RunPlan(ctx context.Context, plan *Plan, newDriver DriverFactory) *Summary {
	start := time.Now()
	summary := &Summary{RunID: uuid.New(), Plan: plan.Name, TotalTests: len(plan.TestCases)}
	results := make([]CaseResult, len(plan.TestCases))

	logger := r.logger.With(zap.String("run", summary.RunID.String()), zap.String("plan", plan.Name))

	workers := max(plan.Parallel, 1)
	slots := make(chan *scenario.Slot, workers)

	for range workers {
		slots <- scenario.NewSlot(logger)
	}

	var g errgroup.Group

	g.SetLimit(workers)

	for i, testCase := range plan.TestCases {
		g.Go(func() error {
			slot := <-slots
			defer func() { slots <- slot }()

			results[i] = r.runCase(ctx, slot, plan, testCase, newDriver)

			return nil
		})
	}

	_ = g.Wait()

	for _, result := range results {
		if result.Success {
			summary.PassedTests++
		} else {
			summary.FailedTests++
		}
	}

	summary.Results = results
	summary.TotalDuration = time.Since(start)

	return summary
}

func (r *Runner) runCase(ctx context.Context, slot *scenario.Slot, plan *Plan, testCase string, newDriver DriverFactory) CaseResult {
	start := time.Now()
	name := fmt.Sprintf("%s - %s", plan.Name, testCase)
	result := CaseResult{Scenario: name, TestCase: testCase}

	fail := func(step string, err error) CaseResult {
		result.Step = step
		result.Error = err
		result.Duration = time.Since(start)

		return result
	}

	var driver ui.Driver

	if newDriver != nil {
		d, err := newDriver(ctx)
		if err != nil {
			return fail("", fmt.Errorf("failed to open UI driver: %w", err))
		}

		driver = d
	}

	s, err := r.Start(ctx, slot, plan.Dir, name, driver)
	if err != nil {
		if driver != nil {
			_ = driver.Close()
		}

		return fail("", err)
	}

	if driver != nil {
		s.Context().OnTeardown(driver.Close)
	}

	defer s.Finish()

	if err := s.SelectTestCase(ctx, testCase); err != nil {
		return fail("", err)
	}

	for i, step := range plan.Steps {
		if err := r.executeStep(ctx, s, plan, step); err != nil {
			return fail(fmt.Sprintf("#%d %s", i+1, step), err)
		}
	}

	result.Success = true
	result.Duration = time.Since(start)

	return result
}

func (r *Runner) executeStep(ctx context.Context, s *Scenario, plan *Plan, step Step) error {
	switch {
	case step.Navigate != "":
		driver, err := s.driver()
		if err != nil {
			return err
		}

		return driver.Navigate(ctx, plan.resolveURL(step.Navigate))
	case step.Click != "":
		driver, err := s.driver()
		if err != nil {
			return err
		}

		return driver.Click(ctx, step.Click)
	case step.Fill != nil:
		return s.Fill(ctx, step.Fill.Selector, step.Fill.Row)
	case step.Wait != 0:
		timer := time.NewTimer(step.Wait)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case step.Capture != "":
		phase := reference.PhaseBefore
		if step.Capture == "after" {
			phase = reference.PhaseAfter
		}

		_, err := s.Capture(ctx, phase)

		return err
	case step.Verify != nil:
		mode, err := verify.ParseMode(step.Verify.Mode)
		if err != nil {
			return err
		}

		equality := verify.EqualExact
		if step.Verify.Date {
			equality = verify.EqualDate
		}

		return s.Verify(ctx, VerifyRequest{
			Selector: step.Verify.Selector,
			Row:      step.Verify.Row,
			Mode:     mode,
			Equality: equality,
			Property: ui.Property{Attribute: step.Verify.Attribute},
		})
	case step.Screenshot != "":
		driver, err := s.driver()
		if err != nil {
			return err
		}

		path := filepath.Join(r.cfg.ResultsDir, s.Paths.Base, fmt.Sprintf("%s_%s", s.TestCase(), step.Screenshot))

		return driver.Screenshot(ctx, path)
	default:
		return nil
	}
}

var (
	summaryHeaderFmt = color.New(color.FgBlue, color.Bold).SprintfFunc()
	passFmt          = color.New(color.FgGreen).SprintfFunc()
	failFmt          = color.New(color.FgRed).SprintfFunc()
	printMu          sync.Mutex
)

// PrintSummary writes the plan summary, with mismatch details for failed cases
func PrintSummary(w io.Writer, summary *Summary) {
	printMu.Lock()
	defer printMu.Unlock()

	fmt.Fprintf(w, "\n")
	fmt.Fprint(w, summaryHeaderFmt("=== Scenario Summary: %s ===\n", summary.Plan))
	fmt.Fprintf(w, "Run: %s\n", summary.RunID)
	fmt.Fprintf(w, "Tests: %d total, %d passed, %d failed\n",
		summary.TotalTests, summary.PassedTests, summary.FailedTests)
	fmt.Fprintf(w, "Duration: %.3fs\n", summary.TotalDuration.Seconds())

	if summary.FailedTests > 0 {
		fmt.Fprintf(w, "\nFailed tests:\n")

		for _, result := range summary.Results {
			if result.Success {
				continue
			}

			fmt.Fprint(w, failFmt("  %s\n", result.Scenario))

			if result.Step != "" {
				fmt.Fprintf(w, "    Step: %s\n", result.Step)
			}

			if mismatch, ok := verify.AsMismatch(result.Error); ok {
				fmt.Fprintf(w, "%s\n", indent(verify.FormatMismatch(mismatch), "    "))
			} else if result.Error != nil {
				fmt.Fprintf(w, "    Error: %v\n", result.Error)
			}
		}
	}

	if summary.FailedTests == 0 {
		fmt.Fprint(w, passFmt("\nAll scenarios passed! ✅\n"))
	} else {
		fmt.Fprint(w, failFmt("\nSome scenarios failed! ❌\n"))
	}
}

func indent(text, prefix string) string {
	var b []byte

	lineStart := true

	for i := 0; i < len(text); i++ {
		if lineStart {
			b = append(b, prefix...)
		}

		b = append(b, text[i])
		lineStart = text[i] == '\n'
	}

	return string(b)
}
