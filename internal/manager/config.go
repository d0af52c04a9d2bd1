package manager

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultDrainTimeout = 10 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Runtime opens weight files. Defaults to the llama.cpp runtime (or its
	// stub when built without the llama tag).
	Runtime Runtime
	// Params are the sampling parameters passed to every generation.
	Params InferParams
	// MemoryBudgetMB reports memory available for weights (RAM plus the VRAM
	// share when offloading). Nil or ok=false skips the precheck.
	MemoryBudgetMB func() (mb uint64, ok bool)
	// ExtractDir receives weights extracted from archives. Empty means next
	// to the archive.
	ExtractDir string
	// RecentPath persists recently loaded models. Empty disables it.
	RecentPath string
	// DrainTimeout bounds how long Unload waits for an active stream to stop.
	DrainTimeout time.Duration
	Publisher    EventPublisher
	Logger       *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		runtime:    cfg.Runtime,
		params:     cfg.Params,
		budget:     cfg.MemoryBudgetMB,
		extractDir: cfg.ExtractDir,
		recentPath: cfg.RecentPath,
		publisher:  cfg.Publisher,
		log:        zerolog.Nop(),
	}
	// Apply defaults if unset
	if m.runtime == nil {
		m.runtime = NewLlamaRuntime()
	}
	if isZeroParams(m.params) {
		m.params = DefaultInferParams()
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	m.startTime = time.Now()
	return m
}

func isZeroParams(p InferParams) bool {
	return p.Temperature == 0 && p.TopP == 0 && p.TopK == 0 && p.MaxTokens == 0 &&
		len(p.Stop) == 0 && p.Seed == 0 && p.RepeatPenalty == 0
}
