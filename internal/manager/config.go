package manager

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"segd/internal/embedcache"
	"segd/internal/imageio"
	"segd/internal/sam"
	"segd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultCacheSize     = 1
	defaultDrainTimeout  = 10 * time.Second
)

// Opener opens the runtime for one model.
type Opener func(sam.Spec, sam.RuntimeConfig) (sam.Model, error)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	CacheSize int
	CacheTTL  time.Duration

	Runtime sam.RuntimeConfig
	// Opener defaults to sam.Open.
	Opener Opener
	// Images defaults to a loader for local paths only.
	Images *imageio.Loader

	Publisher EventPublisher
	Clock     clockwork.Clock
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateLoading,
		registry:     append([]types.Model(nil), cfg.Registry...),
		defaultModel: cfg.DefaultModel,
		instances:    make(map[string]*Instance),
		runtime:      cfg.Runtime,
		opener:       cfg.Opener,
		images:       cfg.Images,
		publisher:    cfg.Publisher,
		clock:        cfg.Clock,
		log:          zerolog.Nop(),
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	if m.opener == nil {
		m.opener = sam.Open
	}
	if m.images == nil {
		m.images = imageio.NewLoader(imageio.LoaderConfig{Logger: cfg.Logger})
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.defaultModel == "" {
		m.defaultModel = pickDefault(m.registry)
	}
	m.cache = embedcache.New(embedcache.Config{
		Size:    cfg.CacheSize,
		TTL:     cfg.CacheTTL,
		Clock:   m.clock,
		OnEvict: m.onEmbeddingEvicted,
	})
	m.startTime = m.clock.Now()
	return m
}

// pickDefault prefers the first sam2 model, then any model.
func pickDefault(reg []types.Model) string {
	for _, mdl := range reg {
		if mdl.Family == types.FamilySAM2 {
			return mdl.ID
		}
	}
	if len(reg) > 0 {
		return reg[0].ID
	}
	return ""
}
