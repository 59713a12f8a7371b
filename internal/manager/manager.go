package manager

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"segd/internal/embedcache"
	"segd/internal/imageio"
	"segd/internal/sam"
	"segd/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	state        State
	err          string
	registry     []types.Model
	defaultModel string
	instances    map[string]*Instance
	loadsTotal   uint64
	closed       bool

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	runtime   sam.RuntimeConfig
	opener    Opener
	images    *imageio.Loader
	cache     *embedcache.Cache
	publisher EventPublisher
	clock     clockwork.Clock
	log       zerolog.Logger
	startTime time.Time
}

// New returns a Manager over reg with package defaults.
func New(reg []types.Model, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, DefaultModel: defaultModel})
}

// Ready reports whether at least one model is loaded and the manager is
// accepting work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed || m.state == StateError {
		return false
	}
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return false
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a shallow copy to avoid external mutation
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// DefaultModel returns the model used when a request names none.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// Device reports the execution provider models are opened with.
func (m *Manager) Device() string {
	if m.runtime.Device == "" {
		return "cpu"
	}
	return m.runtime.Device
}
