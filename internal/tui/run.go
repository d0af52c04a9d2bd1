package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"promai/internal/chat"
)

// Run opens the chat window and blocks until the user quits. Controller
// callbacks are routed into the window for its lifetime.
func Run(ctx context.Context, ctl *chat.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Changes == nil {
		if ch, err := ctl.Store().Watch(ctx); err == nil {
			opts.Changes = ch
		}
	}
	p := tea.NewProgram(New(ctx, ctl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	pres := NewPresenter(p)
	ctl.SetPresenter(pres)
	ctl.Manager().SetPublisher(pres)
	_, err := p.Run()
	ctl.Manager().SetPublisher(nil)
	cancel()
	ctl.Wait()
	return err
}
