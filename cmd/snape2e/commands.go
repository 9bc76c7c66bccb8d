package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/browser"
	"github.com/shibukawa/snape2e/harness"
	"github.com/shibukawa/snape2e/reference"
	"github.com/shibukawa/snape2e/scenario"
	"github.com/shibukawa/snape2e/sqlsource"
	"github.com/shibukawa/snape2e/ui"
	"go.uber.org/zap"
)

// session bundles what every command loads before doing its work
type session struct {
	cfg    *snape2e.Config
	logger *zap.Logger
	db     *sql.DB
	runner *harness.Runner
}

func openSession(ctx context.Context, appCtx *Context, needDB bool) (*session, error) {
	cfg, err := snape2e.LoadConfig(appCtx.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging, appCtx)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}

	var executor *sqlsource.Executor

	dbConfig, err := cfg.CurrentDatabase()

	switch {
	case err == nil:
		db, err := sqlsource.Open(ctx, dbConfig, sqlsource.DefaultPoolSettings)
		if err != nil {
			_ = logger.Sync()
			return nil, err
		}

		logger.Debug("connected to database", zap.String("environment", cfg.Environment), zap.String("driver", dbConfig.Driver))

		s.db = db
		executor = sqlsource.NewExecutor(db, logger)
	case needDB:
		_ = logger.Sync()
		return nil, err
	default:
		logger.Debug("no database configured", zap.String("environment", cfg.Environment))
	}

	s.runner = harness.NewRunner(cfg, executor, logger)

	return s, nil
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}

	_ = s.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// RunCmd runs a scenario plan
type RunCmd struct {
	Plan     string `arg:"" help:"Scenario plan file" type:"existingfile"`
	Parallel int    `help:"Override the number of parallel workers" default:"0"`
}

// Run executes the run command
func (cmd *RunCmd) Run(appCtx *Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	plan, err := harness.LoadPlan(cmd.Plan)
	if err != nil {
		return err
	}

	if cmd.Parallel > 0 {
		plan.Parallel = cmd.Parallel
	}

	s, err := openSession(ctx, appCtx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if appCtx.Verbose {
		color.Blue("Running %s: %d test cases, %d workers", plan.Name, len(plan.TestCases), plan.Parallel)
	}

	summary := s.runner.RunPlan(ctx, plan, func(ctx context.Context) (ui.Driver, error) {
		return browser.Launch(ctx, s.cfg.Browser, s.logger)
	})

	harness.PrintSummary(os.Stdout, summary)

	if summary.FailedTests > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, summary.FailedTests, summary.TotalTests)
	}

	return nil
}

// CaptureCmd executes one section of a scenario's setup script and stores the snapshot
type CaptureCmd struct {
	Scenario string `arg:"" help:"Scenario name, e.g. \"Create User - TC01\""`
	Dir      string `help:"Scenario directory" default:"scenarios" type:"path"`
	Phase    string `help:"Phase to capture (before or after)" default:"before" enum:"before,after"`
	Case     string `help:"Test case column, overrides the one in the scenario name"`
}

// Run executes the capture command
func (cmd *CaptureCmd) Run(appCtx *Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	phase, err := parsePhase(cmd.Phase)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, appCtx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := s.runner.Start(ctx, scenario.NewSlot(s.logger), cmd.Dir, cmd.Scenario, nil)
	if err != nil {
		return err
	}
	defer sc.Finish()

	if err := sc.SelectTestCase(ctx, cmd.Case); err != nil {
		return err
	}

	snapshot, err := sc.Capture(ctx, phase)
	if err != nil {
		return err
	}

	if !appCtx.Quiet {
		before, after := sc.Context().StepsFiles()

		path := before
		if phase == reference.PhaseAfter {
			path = after
		}

		color.Green("Captured %d result sets to %s", snapshot.Len(), path)
	}

	return nil
}

// ResolveCmd prints the value of test data against snapshots captured earlier
type ResolveCmd struct {
	Scenario string   `arg:"" help:"Scenario name, e.g. \"Create User - TC01\""`
	Values   []string `arg:"" help:"References like ${__afterSteps.[0].[0].name} or spreadsheet row names"`
	Dir      string   `help:"Scenario directory" default:"scenarios" type:"path"`
	Case     string   `help:"Test case column, overrides the one in the scenario name"`
}

// Run executes the resolve command
func (cmd *ResolveCmd) Run(appCtx *Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, appCtx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := s.runner.Start(ctx, scenario.NewSlot(s.logger), cmd.Dir, cmd.Scenario, nil)
	if err != nil {
		return err
	}
	defer sc.Finish()

	if err := sc.SelectTestCase(ctx, cmd.Case); err != nil {
		return err
	}

	if err := sc.AttachSnapshots(); err != nil {
		return err
	}

	for _, value := range cmd.Values {
		text, err := resolveValue(sc.Resolver(), value)
		if err != nil {
			return fmt.Errorf("%s: %w", value, err)
		}

		fmt.Printf("%s = %s\n", value, text)
	}

	return nil
}

// resolveValue resolves a reference directly, or a spreadsheet row name through its cell
func resolveValue(resolver *reference.Resolver, value string) (string, error) {
	var (
		resolved reference.Resolved
		err      error
	)

	if reference.IsPlaceholder(value) {
		resolved, err = resolver.Resolve(value)
	} else {
		resolved, err = resolver.RowData(value)
	}

	if err != nil {
		return "", err
	}

	if !resolved.Deferred {
		if err := resolved.Err(); err != nil {
			return "", err
		}

		return fmt.Sprintf("%q", resolved.Text()), nil
	}

	count, err := resolver.RowCount(*resolved.Ref)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, count)

	for i := range count {
		v, err := resolver.ValueAt(*resolved.Ref, i)
		if err != nil {
			return "", err
		}

		texts = append(texts, v.Text())
	}

	return fmt.Sprintf("%q", texts), nil
}

func parsePhase(name string) (reference.Phase, error) {
	switch name {
	case "before":
		return reference.PhaseBefore, nil
	case "after":
		return reference.PhaseAfter, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrInvalidPhase, name)
	}
}
