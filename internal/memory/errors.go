package memory

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation once Close has been called.
var ErrClosed = errors.New("memory: orchestrator is closed")

// ErrNotInitialized is returned by operations invoked before Init.
var ErrNotInitialized = errors.New("memory: orchestrator not initialized")

// ErrConsolidationRunning is returned when a consolidation pass is
// requested while another one is still in flight.
var ErrConsolidationRunning = errors.New("memory: consolidation already running")

// BackendError attributes an initialization failure to the backend that
// raised it.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
