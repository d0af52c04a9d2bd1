// Package chat ties the session manager, the conversation store and the
// attachment extractors together behind presenter callbacks.
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"promai/internal/config"
	"promai/internal/extract"
	"promai/internal/manager"
	"promai/internal/probe"
	"promai/internal/store"
	"promai/pkg/types"
)

// Presenter receives progress, chunks and failures. Callbacks arrive on
// worker goroutines; implementations must hand them to their own loop.
type Presenter interface {
	OnLoadProgress(stage types.Stage, percent int)
	OnChunk(text string, final bool)
	OnError(kind, message string)
}

// Noticer is implemented by presenters that want non-fatal notices such as
// conversation repairs.
type Noticer interface {
	OnNotice(message string)
}

// Error kinds reported through Presenter.OnError besides the manager's.
const (
	KindStore = "store"
	KindEmpty = "empty_message"
)

// ErrEmptyMessage is returned by Send when there is nothing to send.
var ErrEmptyMessage = errors.New("message is empty")

// Options configure a Controller.
type Options struct {
	Manager   *manager.Manager
	Store     *store.Store
	Extractor extract.Extractor
	Presenter Presenter
	Config    config.Config
	// Host is probed before each load. Nil probes the running machine.
	Host   probe.Host
	Budget *Budget
	Logger *zerolog.Logger
}

// Controller runs loads and sends on worker goroutines.
type Controller struct {
	mgr       *manager.Manager
	store     *store.Store
	extractor extract.Extractor
	presenter Presenter
	cfg       config.Config
	host      probe.Host
	budget    *Budget
	template  Template
	log       zerolog.Logger

	mu   sync.Mutex
	last *Reply
	wg   sync.WaitGroup
}

// New builds a Controller. Manager and Store are required.
func New(opts Options) *Controller {
	c := &Controller{
		mgr:       opts.Manager,
		store:     opts.Store,
		extractor: opts.Extractor,
		presenter: opts.Presenter,
		cfg:       opts.Config,
		host:      opts.Host,
		budget:    opts.Budget,
		template:  TemplateFor(opts.Config.PromptTemplate),
		log:       zerolog.Nop(),
	}
	if c.presenter == nil {
		c.presenter = nopPresenter{}
	}
	if c.host == nil {
		c.host = probe.System()
	}
	if c.budget == nil {
		c.budget = &Budget{}
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "chat").Logger()
	}
	return c
}

// Manager returns the session manager.
func (c *Controller) Manager() *manager.Manager { return c.mgr }

// Store returns the conversation store.
func (c *Controller) Store() *store.Store { return c.store }

// LoadModel probes the host and loads path on a worker goroutine. Progress
// goes to the presenter; the channel receives the load result and closes.
func (c *Controller) LoadModel(ctx context.Context, path string) <-chan error {
	ch := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)
		c.presenter.OnLoadProgress(types.StageProbing, 10)
		rep := probe.Prober{Host: c.host, Log: c.log}.Run(ctx)
		c.budget.Set(rep)
		profile := probe.Apply(rep.Profile, c.cfg.Profile)
		_, err := c.mgr.Load(ctx, path, profile, c.presenter.OnLoadProgress)
		if err != nil {
			c.presenter.OnError(errorKind(err), err.Error())
		}
		ch <- err
	}()
	return ch
}

// RepairNotice forwards a store repair to the presenter. Pass it as
// store.Options.OnRepair.
func (c *Controller) RepairNotice(r *store.RepairError) {
	if n, ok := c.presenter.(Noticer); ok {
		n.OnNotice(r.Error())
	}
}

// SetPresenter replaces the presenter. Call it before any load or send.
func (c *Controller) SetPresenter(p Presenter) {
	if p == nil {
		p = nopPresenter{}
	}
	c.presenter = p
}

// Wait blocks until every worker goroutine has returned.
func (c *Controller) Wait() { c.wg.Wait() }

// errorKind maps an error to the kind reported to the presenter.
func errorKind(err error) string {
	var le *manager.LoadError
	if errors.As(err, &le) {
		return string(le.Kind)
	}
	var ge *manager.GenerationError
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	if errors.Is(err, ErrEmptyMessage) {
		return KindEmpty
	}
	return KindStore
}

type nopPresenter struct{}

func (nopPresenter) OnLoadProgress(types.Stage, int) {}
func (nopPresenter) OnChunk(string, bool)            {}
func (nopPresenter) OnError(string, string)          {}

// InferParams converts configured sampling into runtime parameters.
func InferParams(s config.Sampling) manager.InferParams {
	return manager.InferParams{
		Temperature:   s.Temperature,
		TopP:          s.TopP,
		TopK:          s.TopK,
		MaxTokens:     s.MaxTokens,
		Stop:          s.Stop,
		Seed:          s.Seed,
		RepeatPenalty: s.RepeatPenalty,
	}
}
