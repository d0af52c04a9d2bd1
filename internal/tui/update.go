package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"promai/internal/chat"
	"promai/internal/manager"
	"promai/internal/store"
	"promai/pkg/types"
)

const attachCmd = "/attach "

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if mm, cmd, handled := m.handleKey(msg); handled {
			return mm, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LoadProgressMsg:
		m.loading = true
		m.stage, m.percent = msg.Stage, msg.Percent
		m.status = fmt.Sprintf("loading: %s", msg.Stage)
		return m, nil

	case loadDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.ready = false
			m.err = msg.err.Error()
			m.status = "load failed"
			return m, nil
		}
		m.ready = true
		m.err = ""
		m.status = m.modelStatus()
		return m, nil

	case ChunkMsg:
		if !msg.Final {
			m.partial += msg.Text
			m.refresh()
		}
		return m, nil

	case ErrorMsg:
		if msg.Kind != string(manager.GenCancelled) {
			m.err = msg.Message
		}
		return m, nil

	case NoticeMsg:
		m.status = msg.Message
		return m, nil

	case SessionEventMsg:
		switch msg.Name {
		case "unload":
			if !m.loading {
				m.ready = false
				m.status = "model unloaded"
			}
		case "unload_timeout":
			m.err = "the model did not stop in time; it is released once the answer ends"
		}
		return m, nil

	case sendFailedMsg:
		m.streaming = false
		m.cancel = nil
		m.err = sendErrorText(msg.err)
		return m, nil

	case replyStartedMsg:
		return m, tea.Batch(waitReply(msg.reply), m.loadConversation(msg.reply.ConversationID))

	case replyDoneMsg:
		return m.finishReply(msg)

	case metasMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.metas = msg.metas
		return m, nil

	case conversationMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		if msg.conv.ID == m.convID {
			m.turns = msg.conv.Turns
			m.title = msg.conv.Title
			m.refresh()
		}
		return m, nil

	case storeChangedMsg:
		return m, tea.Batch(m.loadMetas(), watchStore(m.changes))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel.Cancel()
		}
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Stop):
		if m.streaming && m.cancel != nil {
			m.cancel.Cancel()
			m.status = "stopping..."
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Send):
		mm, cmd := m.submit()
		return mm, cmd, true

	case key.Matches(msg, m.keys.New):
		if m.streaming {
			return m, nil, true
		}
		m.selectConversation(store.NewID())
		m.title = store.DefaultTitle
		m.refresh()
		return m, nil, true

	case key.Matches(msg, m.keys.Prev), key.Matches(msg, m.keys.Next):
		if m.streaming || len(m.metas) == 0 {
			return m, nil, true
		}
		step := 1
		if key.Matches(msg, m.keys.Prev) {
			step = -1
		}
		id := m.metas[m.neighbour(step)].ID
		m.selectConversation(id)
		return m, m.loadConversation(id), true

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// submit sends the input, or records an attachment for "/attach PATH".
func (m Model) submit() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if path, ok := strings.CutPrefix(text, strings.TrimSpace(attachCmd)); ok {
		path = strings.TrimSpace(path)
		if path != "" {
			m.attachments = append(m.attachments, path)
			m.status = fmt.Sprintf("%d file(s) attached", len(m.attachments))
		}
		m.input.Reset()
		return m, nil
	}
	if text == "" && len(m.attachments) == 0 {
		return m, nil
	}
	if m.streaming {
		m.err = "still answering; press esc to stop"
		return m, nil
	}
	if !m.ready {
		m.err = "no model is loaded"
		return m, nil
	}
	flag := types.NewCancelFlag()
	atts := m.attachments
	m.attachments = nil
	m.cancel = flag
	m.streaming = true
	m.partial = ""
	m.extra = nil
	m.err = ""
	m.status = "thinking..."
	m.input.Reset()
	m.refresh()
	return m, m.send(text, atts, flag)
}

func (m Model) finishReply(msg replyDoneMsg) (tea.Model, tea.Cmd) {
	m.streaming = false
	m.cancel = nil
	partial := m.partial
	m.partial = ""
	switch msg.outcome.State {
	case manager.StreamCancelled:
		if strings.TrimSpace(partial) != "" {
			m.extra = append(m.extra, entry{text: partial, note: "stopped"})
		}
		m.status = "stopped"
	case manager.StreamFailed:
		if strings.TrimSpace(partial) != "" {
			m.extra = append(m.extra, entry{text: partial, note: "interrupted"})
		}
		m.status = "generation failed"
	default:
		m.status = m.modelStatus()
	}
	if msg.err != nil {
		m.err = msg.err.Error()
	}
	m.refresh()
	return m, tea.Batch(m.loadConversation(msg.id), m.loadMetas())
}

func (m *Model) selectConversation(id string) {
	m.convID = id
	m.turns = nil
	m.extra = nil
	m.attachments = nil
	m.err = ""
}

// neighbour returns the index step positions away from the selection,
// wrapping around the list.
func (m Model) neighbour(step int) int {
	cur := -1
	for i, meta := range m.metas {
		if meta.ID == m.convID {
			cur = i
			break
		}
	}
	n := len(m.metas)
	if cur < 0 {
		if step > 0 {
			return 0
		}
		return n - 1
	}
	return ((cur+step)%n + n) % n
}

func (m Model) modelStatus() string {
	if m.ctl == nil || m.ctl.Manager() == nil {
		return "ready"
	}
	snap := m.ctl.Manager().Snapshot()
	if snap.Status != types.StatusReady {
		return string(snap.Status)
	}
	return fmt.Sprintf("ready: %s (%s, %d threads, ctx %d)",
		baseName(snap.ModelPath), humanize.IBytes(uint64(snap.SizeBytes)), snap.Profile.Threads, snap.Profile.ContextLength)
}

func sendErrorText(err error) string {
	switch {
	case manager.IsBusy(err):
		return "the model is still answering"
	case manager.IsNotReady(err):
		return "no model is loaded"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "nothing to send"
	}
	return err.Error()
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
