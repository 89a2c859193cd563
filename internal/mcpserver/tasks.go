package mcpserver

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when every generation slot is taken.
var ErrBusy = errors.New("server busy")

// slots bounds how many generations run at once across all sessions.
type slots struct {
	mu      sync.Mutex
	max     int
	running int
}

func newSlots(max int) *slots {
	if max <= 0 {
		max = 5
	}
	return &slots{max: max}
}

func (s *slots) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running >= s.max {
		return fmt.Errorf("%w: max concurrent tasks reached (%d)", ErrBusy, s.max)
	}
	s.running++
	return nil
}

func (s *slots) release() {
	s.mu.Lock()
	if s.running > 0 {
		s.running--
	}
	s.mu.Unlock()
}
