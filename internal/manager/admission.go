package manager

import (
	"sync"

	"promai/internal/metrics"
)

// acquire reserves the session's single in-flight slot without waiting.
// Returns a release func safe to call more than once.
func (s *Session) acquire() (func(), error) {
	select {
	case s.genCh <- struct{}{}:
	default:
		metrics.IncBusy()
		return nil, ErrBusy
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active = nil
			s.mu.Unlock()
			<-s.genCh
		})
	}, nil
}
