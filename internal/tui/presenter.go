package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"promai/internal/manager"
	"promai/pkg/types"
)

// Presenter forwards controller callbacks into the bubbletea loop.
type Presenter struct {
	send func(tea.Msg)
}

// NewPresenter returns a Presenter that sends to p.
func NewPresenter(p *tea.Program) *Presenter {
	return &Presenter{send: p.Send}
}

func (p *Presenter) OnLoadProgress(stage types.Stage, percent int) {
	p.send(LoadProgressMsg{Stage: stage, Percent: percent})
}

func (p *Presenter) OnChunk(text string, final bool) {
	p.send(ChunkMsg{Text: text, Final: final})
}

func (p *Presenter) OnError(kind, message string) {
	p.send(ErrorMsg{Kind: kind, Message: message})
}

func (p *Presenter) OnNotice(message string) {
	p.send(NoticeMsg{Message: message})
}

// Publish forwards manager lifecycle events.
func (p *Presenter) Publish(e manager.Event) {
	p.send(SessionEventMsg{Name: e.Name, Model: e.Model})
}
