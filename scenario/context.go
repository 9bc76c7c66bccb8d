// Package scenario holds the state shared by the steps of one running
// scenario and the barrier that gates steps on its initialization.
package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shibukawa/snape2e"
	"github.com/shibukawa/snape2e/dataset"
	"github.com/shibukawa/snape2e/reference"
	"github.com/shibukawa/snape2e/spreadsheet"
	"github.com/shibukawa/snape2e/ui"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Context
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Context is the execution context of one scenario. It is created by a
// Slot in the Initializing state, becomes Ready once MarkReady is called
// and returns to Uninitialized on Teardown.
type Context struct {
	id     uuid.UUID
	slot   *Slot
	logger *zap.Logger

	mu    sync.RWMutex
	state State

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
	initErr   error

	driver          ui.Driver
	before          *dataset.File
	after           *dataset.File
	sheet           *spreadsheet.Index
	region          string
	dateFormat      string
	beforeStepsFile string
	afterStepsFile  string
	closers         []func() error
}

func newContext(slot *Slot, logger *zap.Logger) *Context {
	return &Context{
		id:     uuid.New(),
		slot:   slot,
		logger: logger,
		state:  Initializing,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID identifies the context in logs
func (c *Context) ID() uuid.UUID {
	return c.id
}

// State returns the current lifecycle state
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// MarkReady completes initialization and releases every AwaitReady caller
func (c *Context) MarkReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Ready:
		return nil
	case Uninitialized:
		return snape2e.ErrNoContext
	}

	c.state = Ready
	c.readyOnce.Do(func() { close(c.ready) })

	c.logger.Debug("scenario context ready", zap.String("context", c.id.String()))

	return nil
}

// Fail completes initialization with an error that every AwaitReady caller receives
func (c *Context) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Initializing {
		return
	}

	c.initErr = err
	c.readyOnce.Do(func() { close(c.ready) })
}

// AwaitReady blocks until the context is ready. A timeout <= 0 waits until ctx is done.
// It fails with ErrInitializationTimeout when the timeout passes first and
// with ErrNoContext when the context has been torn down.
func (c *Context) AwaitReady(ctx context.Context, timeout time.Duration) error {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if state == Uninitialized {
		return snape2e.ErrNoContext
	}

	select {
	case <-c.ready:
		return c.readyResult()
	default:
	}

	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case <-c.ready:
		return c.readyResult()
	case <-c.done:
		return snape2e.ErrNoContext
	case <-expired:
		return fmt.Errorf("%w after %s", snape2e.ErrInitializationTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Context) readyResult() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == Uninitialized {
		return snape2e.ErrNoContext
	}

	if c.initErr != nil {
		return fmt.Errorf("scenario initialization failed: %w", c.initErr)
	}

	return nil
}

// OnTeardown registers fn to run during Teardown, in reverse registration order
func (c *Context) OnTeardown(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closers = append(c.closers, fn)
}

// Teardown clears every field and releases the slot. Closer errors are
// logged and never stop the teardown.
func (c *Context) Teardown() {
	c.mu.Lock()

	closers := c.closers
	c.closers = nil
	c.driver = nil
	c.before = nil
	c.after = nil
	c.sheet = nil
	c.region = ""
	c.dateFormat = ""
	c.beforeStepsFile = ""
	c.afterStepsFile = ""
	c.state = Uninitialized

	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			c.logger.Warn("teardown step failed", zap.String("context", c.id.String()), zap.Error(err))
		}
	}

	c.slot.release(c)
	c.logger.Debug("scenario context torn down", zap.String("context", c.id.String()))
}

// SetDriver sets the UI handle
func (c *Context) SetDriver(d ui.Driver) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.driver = d
}

// Driver returns the UI handle
func (c *Context) Driver() (ui.Driver, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.driver, c.driver != nil
}

// SetDataset sets the snapshot file of phase
func (c *Context) SetDataset(phase reference.Phase, file *dataset.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch phase {
	case reference.PhaseBefore:
		c.before = file
	case reference.PhaseAfter:
		c.after = file
	default:
		return fmt.Errorf("%w: phase '%s' has no dataset", snape2e.ErrInvalidReference, phase)
	}

	return nil
}

// Dataset returns the snapshot file of phase
func (c *Context) Dataset(phase reference.Phase) (*dataset.File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch phase {
	case reference.PhaseBefore:
		return c.before, c.before != nil
	case reference.PhaseAfter:
		return c.after, c.after != nil
	default:
		return nil, false
	}
}

// SetSpreadsheet sets the scenario's test data index
func (c *Context) SetSpreadsheet(ix *spreadsheet.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sheet = ix
}

// Spreadsheet returns the scenario's test data index
func (c *Context) Spreadsheet() (*spreadsheet.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sheet, c.sheet != nil
}

// SetLocale sets the region and date format used for date comparisons
func (c *Context) SetLocale(region, dateFormat string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = region
	c.dateFormat = dateFormat
}

// Region returns the configured region
func (c *Context) Region() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.region
}

// DateFormat returns the configured date format
func (c *Context) DateFormat() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dateFormat
}

// SetStepsFiles records the snapshot paths of both phases
func (c *Context) SetStepsFiles(before, after string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.beforeStepsFile = before
	c.afterStepsFile = after
}

// StepsFiles returns the snapshot paths of both phases
func (c *Context) StepsFiles() (before, after string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.beforeStepsFile, c.afterStepsFile
}
