package manager

import (
	"sync"
	"time"

	"promai/pkg/types"
)

// ProgressFunc receives coarse load progress. Percent is monotonic within
// one load and reaches 100 only on success.
type ProgressFunc func(stage types.Stage, percent int)

func (f ProgressFunc) report(stage types.Stage, percent int) {
	if f != nil {
		f(stage, percent)
	}
}

// Session is one loaded model. Its Profile is fixed for its lifetime.
type Session struct {
	// ModelPath is the path the caller asked to load.
	ModelPath string
	// WeightsPath is the weight file actually opened (differs from
	// ModelPath for archives).
	WeightsPath string
	Profile     types.Profile
	SizeBytes   int64
	LoadedAt    time.Time

	mu     sync.RWMutex
	status types.Status
	err    error
	handle Handle
	// genCh is the single in-flight generation slot.
	genCh  chan struct{}
	active *Stream
}

func newSession(path string, profile types.Profile) *Session {
	return &Session{
		ModelPath: path,
		Profile:   profile,
		status:    types.StatusLoading,
		genCh:     make(chan struct{}, 1),
	}
}

// Status returns the lifecycle state.
func (s *Session) Status() types.Status {
	if s == nil {
		return types.StatusUnloaded
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the load failure, if any.
func (s *Session) Err() error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Busy reports whether a stream currently holds the session.
func (s *Session) Busy() bool {
	if s == nil {
		return false
	}
	return len(s.genCh) > 0
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	Status        types.Status
	ModelPath     string
	WeightsPath   string
	Profile       types.Profile
	SizeBytes     int64
	LoadedAt      time.Time
	Busy          bool
	Err           string
	LoadsTotal    uint64
	UptimeSeconds int64
}
