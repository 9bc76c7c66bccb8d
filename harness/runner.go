// Package harness runs scenarios: it creates the execution context, loads
// test data, captures datasets around the UI steps and verifies the UI.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/reference"
	"github.com/shibukawa/snape2e/scenario"
	"github.com/shibukawa/snape2e/spreadsheet"
	"github.com/shibukawa/snape2e/sqlsource"
	"github.com/shibukawa/snape2e/ui"
	"github.com/shibukawa/snape2e/verify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrScenarioFiles = errors.New("scenario files not found")
	ErrNoTestCase    = errors.New("no test case selected")
	ErrNoDatabase    = errors.New("no database executor configured")
	ErrNoTestData    = errors.New("no test data for row")
	ErrInvalidPhase  = errors.New("phase must be beforeSteps or afterSteps")
)

// Runner starts scenarios with shared configuration
type Runner struct {
	cfg       *snape2e.Config
	executor  *sqlsource.Executor
	logger    *zap.Logger
	lookupEnv func(string) (string, bool)
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLookupEnv replaces os.LookupEnv for env references
func WithLookupEnv(lookup func(string) (string, bool)) RunnerOption {
	return func(r *Runner) {
		r.lookupEnv = lookup
	}
}

// NewRunner creates a runner. executor may be nil when no scenario captures datasets.
func NewRunner(cfg *snape2e.Config, executor *sqlsource.Executor, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{cfg: cfg, executor: executor, logger: logger, lookupEnv: os.LookupEnv}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Scenario is one running scenario bound to an execution context
type Scenario struct {
	Name     string
	Paths    Paths
	runner   *Runner
	ctx      *scenario.Context
	logger   *zap.Logger
	resolver *reference.Resolver

	initDone chan struct{}

	mu       sync.Mutex
	script   *sqlsource.Script
	testCase string
	engine   *verify.Engine
}

// Start creates the execution context in slot and loads the scenario's
// spreadsheet, setup script and locale settings in the background. Steps
// wait for that through AwaitReady. driver may be nil for data-only runs.
func (r *Runner) Start(ctx context.Context, slot *scenario.Slot, dir, name string, driver ui.Driver) (*Scenario, error) {
	base, testCase := ParseScenarioName(name)

	paths, err := ResolvePaths(dir, base)
	if err != nil {
		return nil, err
	}

	sc, err := slot.New()
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("scenario", name), zap.String("context", sc.ID().String()))

	if driver != nil {
		sc.SetDriver(driver)
	}

	s := &Scenario{
		Name:     name,
		Paths:    paths,
		runner:   r,
		ctx:      sc,
		logger:   logger,
		testCase: testCase,
		initDone: make(chan struct{}),
		resolver: reference.NewResolver(sc, reference.WithLogger(logger), reference.WithLookupEnv(r.lookupEnv)),
	}

	go s.initialize(ctx)

	return s, nil
}

func (s *Scenario) initialize(ctx context.Context) {
	defer close(s.initDone)

	cfg := s.runner.cfg

	var (
		sheet              *spreadsheet.Index
		script             *sqlsource.Script
		region, dateFormat = cfg.Locale.Region, cfg.Locale.DateFormat
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		sheet, err = spreadsheet.Load(s.Paths.Spreadsheet, cfg.Spreadsheet.Sheet)

		return err
	})

	g.Go(func() error {
		var err error

		script, err = sqlsource.LoadScript(s.Paths.Script)

		return err
	})

	if cfg.Locale.SettingsQuery != "" && s.runner.executor != nil {
		g.Go(func() error {
			query, err := s.resolver.ExpandEnv(cfg.Locale.SettingsQuery)
			if err != nil {
				return err
			}

			r, f, err := s.runner.executor.Locale(gctx, query)
			if err != nil {
				return err
			}

			if r != "" {
				region = r
			}

			if f != "" {
				dateFormat = f
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("scenario initialization failed", zap.Error(err))
		s.ctx.Fail(err)

		return
	}

	s.mu.Lock()
	s.script = script
	s.mu.Unlock()

	s.ctx.SetSpreadsheet(sheet)
	s.ctx.SetLocale(region, dateFormat)

	if err := s.ctx.MarkReady(); err != nil {
		s.logger.Warn("scenario finished before initialization", zap.Error(err))
		return
	}

	s.logger.Debug("scenario ready", zap.String("region", region), zap.String("date_format", dateFormat))
}

// Context returns the execution context
func (s *Scenario) Context() *scenario.Context {
	return s.ctx
}

// Resolver returns the reference resolver bound to the scenario
func (s *Scenario) Resolver() *reference.Resolver {
	return s.resolver
}

// AwaitReady waits for background initialization
func (s *Scenario) AwaitReady(ctx context.Context) error {
	return s.ctx.AwaitReady(ctx, s.runner.cfg.Verification.ReadyTimeout)
}

// SelectTestCase waits for initialization, selects the spreadsheet column
// testCase and records the snapshot paths of both phases. An empty
// testCase keeps the one parsed from the scenario name.
func (s *Scenario) SelectTestCase(ctx context.Context, testCase string) error {
	if err := s.AwaitReady(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if testCase == "" {
		testCase = s.testCase
	}

	if testCase == "" {
		return ErrNoTestCase
	}

	sheet, ok := s.ctx.Spreadsheet()
	if !ok {
		return snape2e.ErrNoContext
	}

	if err := sheet.SelectColumn(testCase); err != nil {
		return err
	}

	s.testCase = testCase

	resultsDir := s.runner.cfg.ResultsDir
	s.ctx.SetStepsFiles(
		SnapshotPath(resultsDir, s.Paths.Base, reference.PhaseBefore, testCase),
		SnapshotPath(resultsDir, s.Paths.Base, reference.PhaseAfter, testCase),
	)

	loc, err := s.runner.cfg.Location()
	if err != nil {
		return err
	}

	s.engine = verify.New(s.resolver,
		verify.WithDateFormatter(verify.NewDateFormatter(s.ctx.Region(), s.ctx.DateFormat(), loc)),
		verify.WithSeparator(s.runner.cfg.Verification.Separator),
		verify.WithLogger(s.logger),
	)

	s.logger.Info("test case selected", zap.String("test_case", testCase))

	return nil
}

// TestCase returns the selected test case
func (s *Scenario) TestCase() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.testCase
}

// Capture runs the setup script section of phase, with context references
// expanded, and persists the result as the phase's dataset
func (s *Scenario) Capture(ctx context.Context, phase reference.Phase) (*dataset.Snapshot, error) {
	if phase != reference.PhaseBefore && phase != reference.PhaseAfter {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidPhase, phase)
	}

	if s.runner.executor == nil {
		return nil, ErrNoDatabase
	}

	s.mu.Lock()
	script := s.script
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return nil, ErrNoTestCase
	}

	label := sqlsource.BeforeSection

	beforePath, afterPath := s.ctx.StepsFiles()
	path := beforePath

	if phase == reference.PhaseAfter {
		label = sqlsource.AfterSection
		path = afterPath
	}

	section, err := script.Section(label)
	if err != nil {
		return nil, err
	}

	query, err := s.resolver.ExpandContext(section)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.runner.executor.Snapshot(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", phase, err)
	}

	file := dataset.NewFile(path)
	if err := file.Write(snapshot); err != nil {
		return nil, err
	}

	if err := s.ctx.SetDataset(phase, file); err != nil {
		return nil, err
	}

	s.logger.Info("dataset captured", zap.String("phase", string(phase)), zap.String("path", path), zap.Int("result_sets", snapshot.Len()))

	return snapshot, nil
}

// AttachSnapshots binds snapshot files captured by an earlier run to both
// phases without executing anything
func (s *Scenario) AttachSnapshots() error {
	beforePath, afterPath := s.ctx.StepsFiles()
	if beforePath == "" {
		return ErrNoTestCase
	}

	if err := s.ctx.SetDataset(reference.PhaseBefore, dataset.NewFile(beforePath)); err != nil {
		return err
	}

	return s.ctx.SetDataset(reference.PhaseAfter, dataset.NewFile(afterPath))
}

func (s *Scenario) driver() (ui.Driver, error) {
	driver, ok := s.ctx.Driver()
	if !ok {
		return nil, fmt.Errorf("%w: no UI driver attached", snape2e.ErrNoContext)
	}

	return driver, nil
}

// Fill types the test data of rowName into selector
func (s *Scenario) Fill(ctx context.Context, selector, rowName string) error {
	driver, err := s.driver()
	if err != nil {
		return err
	}

	resolved, err := s.resolver.RowData(rowName)
	if err != nil {
		return err
	}

	if resolved.Deferred {
		return fmt.Errorf("%w: row '%s': row selector [i] cannot fill a single input", snape2e.ErrInvalidReference, rowName)
	}

	return driver.Fill(ctx, selector, resolved.Text())
}

// VerifyRequest is one UI verification against a spreadsheet row
type VerifyRequest struct {
	Selector string
	Row      string
	Mode     verify.Mode
	Equality verify.Equality
	Property ui.Property
}

// Verify reads the visible values of req.Selector and compares them with
// the test data of req.Row. A blank cell holds no test data and fails with
// ErrNoTestData instead of comparing against the empty string.
func (s *Scenario) Verify(ctx context.Context, req VerifyRequest) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return ErrNoTestCase
	}

	driver, err := s.driver()
	if err != nil {
		return err
	}

	raw, ok, err := s.resolver.RawRowData(req.Row)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: '%s' in test case '%s'", ErrNoTestData, req.Row, s.TestCase())
	}

	values, err := ui.Values(ctx, driver, req.Selector, req.Property)
	if err != nil {
		return err
	}

	return engine.Verify(verify.Check{
		Field:    req.Row,
		Raw:      raw,
		Mode:     req.Mode,
		Equality: req.Equality,
	}, values)
}

// Finish waits for initialization to settle and tears the context down
func (s *Scenario) Finish() {
	<-s.initDone
	s.ctx.Teardown()
}
