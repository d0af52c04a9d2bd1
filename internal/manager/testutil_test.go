package manager

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"promai/pkg/types"
)

// writeGGUF creates a weight file with a GGUF header and size bytes total.
func writeGGUF(t *testing.T, dir, name string, size int) string {
	t.Helper()
	if size < 4 {
		size = 4
	}
	b := make([]byte, size)
	copy(b, "GGUF")
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write gguf: %v", err)
	}
	return p
}

// writeZip creates an archive holding the given entries.
func writeZip(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for n, data := range entries {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return p
}

func ggufBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, "GGUF")
	return b
}

// fakeRuntime is a lightweight in-memory runtime used for tests.
type fakeRuntime struct {
	mu       sync.Mutex
	openErr  error
	openWait chan struct{}
	tokens   []string
	// failAt makes Generate fail after that many tokens (when genErr set).
	failAt   int
	genErr   error
	panicGen bool
	log      []string
	opened   []string
	profiles []types.Profile
	handles  []*fakeHandle
}

func (f *fakeRuntime) Open(modelPath string, profile types.Profile) (Handle, error) {
	if f.openWait != nil {
		<-f.openWait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "open "+filepath.Base(modelPath))
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, modelPath)
	f.profiles = append(f.profiles, profile)
	h := &fakeHandle{rt: f, name: filepath.Base(modelPath)}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeRuntime) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.log))
	copy(out, f.log)
	return out
}

type fakeHandle struct {
	rt     *fakeRuntime
	name   string
	mu     sync.Mutex
	closed bool
	calls  int
}

func (h *fakeHandle) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) error {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.rt.panicGen {
		panic("boom")
	}
	for i, tok := range h.rt.tokens {
		if h.rt.genErr != nil && i == h.rt.failAt {
			return h.rt.genErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	if h.rt.genErr != nil && h.rt.failAt >= len(h.rt.tokens) {
		return h.rt.genErr
	}
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.rt.mu.Lock()
	h.rt.log = append(h.rt.log, "close "+h.name)
	h.rt.mu.Unlock()
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

var testProfile = types.Profile{Threads: 2, ContextLength: 2048, BatchSize: 128}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// loadReady loads a fresh GGUF into m and fails the test on error.
func loadReady(t *testing.T, m *Manager) *Session {
	t.Helper()
	p := writeGGUF(t, t.TempDir(), "tiny.gguf", 64)
	s, err := m.Load(testCtx(t), p, testProfile, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func collect(st *Stream) []types.TextChunk {
	var out []types.TextChunk
	for c := range st.All() {
		out = append(out, c)
	}
	return out
}

var errFault = errors.New("device lost")

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}
