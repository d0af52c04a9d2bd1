package e2e

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"promai/internal/chat"
	"promai/internal/config"
	"promai/internal/extract"
	"promai/internal/manager"
	"promai/internal/probe"
	"promai/internal/store"
	"promai/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with small
// GGUF files and returns the directory path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		b := make([]byte, 256)
		copy(b, "GGUF")
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, b, 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

func zipModel(t *testing.T, dir, name string, entries ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		b := make([]byte, 256)
		copy(b, "GGUF")
		if _, err := w.Write(b); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return p
}

// wordRuntime answers every prompt with the same words, optionally waiting
// on gate before each one.
type wordRuntime struct {
	words []string
	gate  chan struct{}

	mu      sync.Mutex
	prompts []string
}

func (r *wordRuntime) Open(string, types.Profile) (manager.Handle, error) {
	return &wordHandle{rt: r}, nil
}

type wordHandle struct{ rt *wordRuntime }

func (h *wordHandle) Generate(ctx context.Context, prompt string, _ manager.InferParams, onToken func(string) error) error {
	h.rt.mu.Lock()
	h.rt.prompts = append(h.rt.prompts, prompt)
	h.rt.mu.Unlock()
	for _, w := range h.rt.words {
		if h.rt.gate != nil {
			select {
			case <-h.rt.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := onToken(w); err != nil {
			return err
		}
	}
	return nil
}

func (h *wordHandle) Close() error { return nil }

type sink struct {
	mu      sync.Mutex
	text    string
	notices []string
}

func (s *sink) OnLoadProgress(types.Stage, int) {}
func (s *sink) OnChunk(text string, _ bool) {
	s.mu.Lock()
	s.text += text
	s.mu.Unlock()
}
func (s *sink) OnError(string, string) {}

func (s *sink) streamed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}
func (s *sink) OnNotice(m string) {
	s.mu.Lock()
	s.notices = append(s.notices, m)
	s.mu.Unlock()
}

// laptop is a mid-range machine with no GPU.
type laptop struct{}

func (laptop) CPUs() int                                { return 8 }
func (laptop) Memory() (uint64, uint64, error)          { return 16384, 12288, nil }
func (laptop) GPU(context.Context) (*probe.GPU, error) { return nil, nil }

type harness struct {
	mgr   *manager.Manager
	store *store.Store
	ctl   *chat.Controller
	out   *sink
}

// newHarness wires a controller the way cmd/promai does, over convDir.
func newHarness(t *testing.T, rt manager.Runtime, convDir string) *harness {
	t.Helper()
	h := &harness{out: &sink{}}
	h.mgr = manager.NewWithConfig(manager.ManagerConfig{Runtime: rt})
	st, err := store.Open(convDir, store.Options{OnRepair: func(r *store.RepairError) {
		if h.ctl != nil {
			h.ctl.RepairNotice(r)
		}
	}})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	h.store = st
	cfg := config.Defaults()
	h.ctl = chat.New(chat.Options{Manager: h.mgr, Store: st, Extractor: extract.New(), Presenter: h.out, Config: cfg, Host: laptop{}})
	t.Cleanup(func() {
		h.mgr.Close()
		h.ctl.Wait()
		_ = st.Close()
	})
	return h
}

func (h *harness) load(t *testing.T, path string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := <-h.ctl.LoadModel(ctx, path); err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
}

func (h *harness) ask(t *testing.T, convID, text string) manager.Outcome {
	t.Helper()
	r, err := h.ctl.Send(context.Background(), convID, text, nil, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("reply timed out")
	}
	out, err := r.Wait()
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	return out
}
