package manager

import (
	"sync"
	"time"

	"segd/internal/sam"
)

// State represents lifecycle state of the manager/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateError    State = "error"
	StateDraining State = "draining"
)

// Instance is a loaded (or loading) model, one per model id.
type Instance struct {
	ID       string
	Family   sam.Family
	State    State
	LastUsed time.Time
	Err      string
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight inference
	queueCh chan struct{} // buffered: queue slots

	loadMu sync.Mutex
	Model  sam.Model
}
