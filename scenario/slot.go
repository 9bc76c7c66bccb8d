package scenario

import (
	"sync"

	"github.com/shibukawa/snape2e"
	"go.uber.org/zap"
)

// Slot holds at most one live Context. Each worker owns its own slot, so
// scenarios on different workers never share state.
type Slot struct {
	mu      sync.Mutex
	current *Context
	logger  *zap.Logger
}

// NewSlot creates an empty slot
func NewSlot(logger *zap.Logger) *Slot {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Slot{logger: logger}
}

// New creates a context. It fails with ErrDuplicateContext while another
// context of this slot is live.
func (s *Slot) New() (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, snape2e.ErrDuplicateContext
	}

	s.current = newContext(s, s.logger)
	s.logger.Debug("scenario context created", zap.String("context", s.current.id.String()))

	return s.current, nil
}

// Instance returns the live context, creating one when the slot is empty
func (s *Slot) Instance() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.current = newContext(s, s.logger)
	}

	return s.current
}

// Current returns the live context, if any
func (s *Slot) Current() (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current, s.current != nil
}

func (s *Slot) release(c *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == c {
		s.current = nil
	}
}
