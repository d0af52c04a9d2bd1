package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promai/internal/config"
	"promai/internal/extract"
	"promai/internal/manager"
	"promai/internal/probe"
	"promai/internal/store"
	"promai/pkg/types"
)

// scriptRuntime answers every prompt with the same tokens.
type scriptRuntime struct {
	mu       sync.Mutex
	tokens   []string
	failAt   int
	genErr   error
	gate     chan struct{}
	prompts  []string
	profiles []types.Profile
}

func (r *scriptRuntime) Open(path string, profile types.Profile) (manager.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, profile)
	return &scriptHandle{rt: r}, nil
}

func (r *scriptRuntime) lastPrompt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.prompts) == 0 {
		return ""
	}
	return r.prompts[len(r.prompts)-1]
}

type scriptHandle struct{ rt *scriptRuntime }

func (h *scriptHandle) Generate(ctx context.Context, prompt string, _ manager.InferParams, onToken func(string) error) error {
	h.rt.mu.Lock()
	h.rt.prompts = append(h.rt.prompts, prompt)
	h.rt.mu.Unlock()
	for i, tok := range h.rt.tokens {
		if h.rt.genErr != nil && i == h.rt.failAt {
			return h.rt.genErr
		}
		if h.rt.gate != nil {
			select {
			case <-h.rt.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (h *scriptHandle) Close() error { return nil }

type fakeHost struct {
	cpus  int
	total uint64
	avail uint64
	gpu   *probe.GPU
	err   error
}

func (h fakeHost) CPUs() int { return h.cpus }
func (h fakeHost) Memory() (uint64, uint64, error) {
	return h.total, h.avail, h.err
}
func (h fakeHost) GPU(context.Context) (*probe.GPU, error) { return h.gpu, nil }

// recorder collects presenter callbacks.
type recorder struct {
	mu       sync.Mutex
	stages   []types.Stage
	percents []int
	chunks   []string
	finals   int
	errs     []string
	notices  []string
}

func (r *recorder) OnLoadProgress(stage types.Stage, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.percents = append(r.percents, percent)
}

func (r *recorder) OnChunk(text string, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if final {
		r.finals++
		return
	}
	r.chunks = append(r.chunks, text)
}

func (r *recorder) OnError(kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, kind)
}

func (r *recorder) OnNotice(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, message)
}

func (r *recorder) errorKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errs...)
}

type fixture struct {
	rt    *scriptRuntime
	rec   *recorder
	store *store.Store
	ctl   *Controller
	model string
}

func newFixture(t *testing.T, rt *scriptRuntime, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.SystemPrompt = ""
	if mutate != nil {
		mutate(&cfg)
	}
	budget := &Budget{}
	mgr := manager.NewWithConfig(manager.ManagerConfig{Runtime: rt, MemoryBudgetMB: budget.MB})
	t.Cleanup(mgr.Close)
	rec := &recorder{}
	f := &fixture{rt: rt, rec: rec}
	st, err := store.Open(filepath.Join(t.TempDir(), "conversations"), store.Options{NoIndex: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	f.store = st
	f.ctl = New(Options{
		Manager:   mgr,
		Store:     st,
		Extractor: extract.New(),
		Presenter: rec,
		Config:    cfg,
		Host:      fakeHost{cpus: 8, total: 32 * 1024, avail: 24 * 1024},
		Budget:    budget,
	})
	f.model = writeGGUF(t, t.TempDir(), "tiny.gguf")
	return f
}

func writeGGUF(t *testing.T, dir, name string) string {
	t.Helper()
	b := make([]byte, 64)
	copy(b, "GGUF")
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	select {
	case err := <-f.ctl.LoadModel(context.Background(), f.model):
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("load timed out")
	}
}

func waitReply(t *testing.T, r *Reply) manager.Outcome {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reply timed out")
	}
	out, err := r.Wait()
	require.NoError(t, err)
	return out
}

var errDevice = errors.New("device lost")
