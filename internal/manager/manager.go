package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"promai/pkg/types"
)

// Manager holds at most one loaded Session. Load and Unload are serialized;
// generation is gated per Session.
type Manager struct {
	// opMu serializes Load/Unload/Close.
	opMu sync.Mutex
	mu   sync.RWMutex
	cur  *Session
	// last is the most recent Session, kept after a failed load so Snapshot
	// can report the failure.
	last *Session

	runtime      Runtime
	params       InferParams
	budget       func() (uint64, bool)
	extractDir   string
	recentPath   string
	drainTimeout time.Duration
	publisher    EventPublisher
	log          zerolog.Logger

	startTime  time.Time
	loadsTotal uint64
	closed     bool
}

// New constructs a Manager around rt with default settings.
func New(rt Runtime) *Manager {
	return NewWithConfig(ManagerConfig{Runtime: rt})
}

// SetPublisher replaces the event publisher. Nil restores the no-op publisher.
func (m *Manager) SetPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// Params returns the sampling parameters used for generations.
func (m *Manager) Params() InferParams {
	return m.params
}

// Current returns the Ready session, or nil when none is loaded.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil || m.cur.Status() != types.StatusReady {
		return nil
	}
	return m.cur
}

// Ready reports whether a session is loaded and ready.
func (m *Manager) Ready() bool {
	return m.Current() != nil
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}
