package manager

import (
	"context"

	"promai/internal/metrics"
	"promai/pkg/types"
)

// Generate starts a lazy generation of req.Prompt on s. Nothing is
// produced until the returned Stream is consumed. It fails fast with
// ErrBusy when another stream is active on s and with ErrNotReady when s
// is not Ready. A request whose cancel flag is already set yields a stream
// that ends Cancelled with zero chunks.
func (m *Manager) Generate(ctx context.Context, s *Session, req types.GenerationRequest) (*Stream, error) {
	if s == nil || s.Status() != types.StatusReady {
		return nil, ErrNotReady
	}
	release, err := s.acquire()
	if err != nil {
		m.publish(Event{Name: "generate_busy", Model: s.ModelPath})
		m.log.Debug().Str("path", s.ModelPath).Msg("generation rejected: busy")
		return nil, err
	}

	s.mu.Lock()
	h := s.handle
	if s.status != types.StatusReady || h == nil {
		s.mu.Unlock()
		release()
		return nil, ErrNotReady
	}
	st := newStream(ctx, req.Cancel, release)
	s.active = st
	s.mu.Unlock()

	path := s.ModelPath
	st.onDone = func(o Outcome) {
		metrics.ObserveGeneration(string(o.State))
		fields := map[string]any{"state": string(o.State), "chunks": o.Chunks}
		ev := m.log.Info()
		if o.Err != nil {
			fields["error"] = o.Err.Error()
			ev = m.log.Warn().Err(o.Err)
		}
		m.publish(Event{Name: "generate_done", Model: path, Fields: fields})
		ev.Str("event", "generate_done").Str("state", string(o.State)).Int("chunks", o.Chunks).Msg("generation finished")
	}
	m.publish(Event{Name: "generate_start", Model: path, Fields: map[string]any{"context_turns": len(req.Context)}})
	m.log.Debug().Str("event", "generate_start").Int("prompt_len", len(req.Prompt)).Msg("generation started")
	st.start(h, req.Prompt, m.params)
	return st, nil
}
