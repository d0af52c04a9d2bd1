package manager

import (
	"errors"
	"time"

	"promai/pkg/types"
)

var errClosed = errors.New("manager is closed")

// Unload releases the session's handle. Any active stream is stopped first
// and waited for, up to the drain timeout. Unloading an already unloaded or
// failed session is a no-op.
func (m *Manager) Unload(s *Session) {
	if s == nil {
		return
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	if m.cur == s {
		m.cur = nil
	}
	m.mu.Unlock()
	m.unloadSession(s)
}

// Close unloads the current session and rejects further loads.
func (m *Manager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	m.closed = true
	s := m.cur
	m.cur = nil
	m.mu.Unlock()
	if s != nil {
		m.unloadSession(s)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// unloadSession must be called with opMu held.
func (m *Manager) unloadSession(s *Session) {
	s.mu.Lock()
	if s.status != types.StatusReady {
		if s.status == types.StatusLoading {
			s.status = types.StatusUnloaded
		}
		s.mu.Unlock()
		return
	}
	s.status = types.StatusUnloaded
	active := s.active
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	m.publish(Event{Name: "unload_start", Model: s.ModelPath})

	if active != nil {
		active.abort()
		select {
		case <-active.done:
		case <-time.After(m.drainTimeout):
			m.publish(Event{Name: "unload_timeout", Model: s.ModelPath})
			m.log.Warn().Str("path", s.ModelPath).Dur("timeout", m.drainTimeout).Msg("stream did not stop before unload")
			// The runtime still owns the handle; close it once it returns.
			go func() {
				<-active.done
				closeHandle(m, s, h)
			}()
			return
		}
	}
	closeHandle(m, s, h)
}

func closeHandle(m *Manager, s *Session, h Handle) {
	if h != nil {
		if err := h.Close(); err != nil {
			m.log.Warn().Err(err).Str("path", s.ModelPath).Msg("closing model handle")
		}
	}
	m.publish(Event{Name: "unload", Model: s.ModelPath})
	m.log.Info().Str("event", "unload").Str("path", s.ModelPath).Msg("model unloaded")
}
