package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"promai/internal/common/fsutil"
	"promai/internal/metrics"
	"promai/pkg/types"
)

type openResult struct {
	h   Handle
	err error
}

// Load opens the weights at path with profile, replacing any loaded session.
// The previous handle is fully released before the new one is acquired.
// Failures are *LoadError; on failure no handle stays reachable and Current
// returns nil.
func (m *Manager) Load(ctx context.Context, path string, profile types.Profile, progress ProgressFunc) (*Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.isClosed() {
		return nil, loadErr(LoadRuntimeFault, path, errClosed)
	}
	start := time.Now()
	if expanded, err := fsutil.ExpandHome(path); err == nil {
		path = expanded
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	profile = profile.Normalize()

	if prev := m.swapCurrent(nil); prev != nil {
		m.unloadSession(prev)
	}

	s := newSession(path, profile)
	m.mu.Lock()
	m.cur = s
	m.last = s
	m.loadsTotal++
	m.mu.Unlock()
	m.publish(Event{Name: "load_start", Model: path, Fields: map[string]any{
		"threads": profile.Threads, "context_length": profile.ContextLength,
		"batch_size": profile.BatchSize, "gpu_layers": profile.GPULayers,
	}})
	m.log.Info().Str("event", "load_start").Str("path", path).
		Int("threads", profile.Threads).Int("ctx", profile.ContextLength).
		Int("batch", profile.BatchSize).Int("gpu_layers", profile.GPULayers).Msg("loading model")

	fail := func(err error) (*Session, error) {
		var le *LoadError
		if !errors.As(err, &le) {
			le = loadErr(LoadRuntimeFault, path, err)
		}
		s.mu.Lock()
		s.status = types.StatusFailed
		s.err = le
		s.handle = nil
		s.mu.Unlock()
		m.mu.Lock()
		if m.cur == s {
			m.cur = nil
		}
		m.mu.Unlock()
		metrics.ObserveLoad(string(le.Kind), time.Since(start))
		m.publish(Event{Name: "load_failed", Model: path, Fields: map[string]any{"kind": string(le.Kind), "error": le.Error()}})
		m.log.Warn().Str("event", "load_failed").Str("path", path).Str("kind", string(le.Kind)).Err(le.Err).Msg("model load failed")
		return nil, le
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	weights, err := m.prepareWeights(ctx, path, progress)
	if err != nil {
		return fail(err)
	}
	if err := m.checkMemory(weights); err != nil {
		return fail(loadErr(LoadInsufficientResources, path, err))
	}

	progress.report(types.StageReading, 50)
	h, err := m.open(ctx, weights, profile)
	if err != nil {
		switch {
		case isOutOfMemory(err):
			err = loadErr(LoadInsufficientResources, path, err)
		case IsDependencyUnavailable(err):
			err = loadErr(LoadRuntimeFault, path, err)
		}
		return fail(err)
	}

	progress.report(types.StageFinalizing, 90)
	var size int64
	if fi, err := os.Stat(weights); err == nil {
		size = fi.Size()
	}
	s.mu.Lock()
	s.WeightsPath = weights
	s.SizeBytes = size
	s.LoadedAt = time.Now()
	s.handle = h
	s.status = types.StatusReady
	s.mu.Unlock()
	m.recordRecent(path, profile)

	metrics.ObserveLoad("ok", time.Since(start))
	m.publish(Event{Name: "load_ready", Model: path, Fields: map[string]any{"weights": weights, "size_bytes": size}})
	m.log.Info().Str("event", "load_ready").Str("path", path).Dur("took", time.Since(start)).Msg("model ready")
	progress.report(types.StageReady, 100)
	return s, nil
}

// open runs Runtime.Open on a worker goroutine so a canceled ctx returns
// promptly. A handle that arrives after cancellation is closed.
func (m *Manager) open(ctx context.Context, weights string, profile types.Profile) (Handle, error) {
	ch := make(chan openResult, 1)
	go func() {
		var res openResult
		defer func() {
			if r := recover(); r != nil {
				res = openResult{err: panicError(r)}
			}
			ch <- res
		}()
		res.h, res.err = m.runtime.Open(weights, profile)
	}()
	select {
	case r := <-ch:
		if r.err == nil && r.h == nil {
			return nil, errors.New("runtime returned no handle")
		}
		return r.h, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.h != nil {
				_ = r.h.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (m *Manager) swapCurrent(s *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.cur
	m.cur = s
	return prev
}
