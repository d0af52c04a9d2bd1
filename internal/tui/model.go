// Package tui is the terminal chat window: a conversation list, the
// transcript of the selected conversation and an input box.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"promai/internal/chat"
	"promai/internal/store"
	"promai/pkg/types"
)

const sidebarWidth = 32

// entry is a transcript line that is shown but not stored: the partial text
// of a cancelled or failed answer.
type entry struct {
	text string
	note string
}

// Options configure the chat window.
type Options struct {
	// ModelPath is loaded on start when set.
	ModelPath string
	// ConversationID selects a conversation on start; empty starts a new one.
	ConversationID string
	// Changes refreshes the conversation list; see store.Watch.
	Changes <-chan store.Change
}

// Model is the bubbletea model of the chat window.
type Model struct {
	ctx  context.Context
	ctl  *chat.Controller
	keys KeyMap

	input    textarea.Model
	viewport viewport.Model
	progress progress.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width, height int
	changes       <-chan store.Change

	// conversation list and selection
	metas  []types.ConversationMeta
	convID string
	title  string
	turns  []types.Turn
	extra  []entry

	// model loading
	modelPath string
	loading   bool
	stage     types.Stage
	percent   int
	ready     bool

	// generation
	streaming   bool
	partial     string
	cancel      *types.CancelFlag
	attachments []string

	status string
	err    string
}

// New builds the chat window over ctl.
func New(ctx context.Context, ctl *chat.Controller, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Message (enter to send, /attach PATH to add a file)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		ctl:       ctl,
		keys:      DefaultKeyMap(),
		input:     ta,
		viewport:  viewport.New(80, 20),
		progress:  progress.New(progress.WithDefaultGradient()),
		spinner:   sp,
		modelPath: opts.ModelPath,
		convID:    opts.ConversationID,
		changes:   opts.Changes,
		title:     store.DefaultTitle,
		status:    "no model loaded",
	}
	if m.convID == "" {
		m.convID = store.NewID()
	}
	return m
}

// Init starts the cursor blink, the spinner, the conversation list and,
// when a model path was given, the load.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick, m.loadMetas(), m.loadConversation(m.convID), watchStore(m.changes)}
	if m.modelPath != "" {
		cmds = append(cmds, m.startLoad(m.modelPath))
	}
	return tea.Batch(cmds...)
}

func (m Model) startLoad(path string) tea.Cmd {
	ch := m.ctl.LoadModel(m.ctx, path)
	return func() tea.Msg {
		return loadDoneMsg{err: <-ch}
	}
}

func (m Model) loadMetas() tea.Cmd {
	st := m.ctl.Store()
	return func() tea.Msg {
		metas, err := st.Metas()
		return metasMsg{metas: metas, err: err}
	}
}

func (m Model) loadConversation(id string) tea.Cmd {
	st := m.ctl.Store()
	return func() tea.Msg {
		conv, err := st.Load(id)
		return conversationMsg{conv: conv, err: err}
	}
}

func (m Model) send(text string, attachments []string, flag *types.CancelFlag) tea.Cmd {
	ctl, ctx, id := m.ctl, m.ctx, m.convID
	return func() tea.Msg {
		r, err := ctl.Send(ctx, id, text, attachments, flag)
		if err != nil {
			return sendFailedMsg{err: err}
		}
		return replyStartedMsg{reply: r}
	}
}

func waitReply(r *chat.Reply) tea.Cmd {
	return func() tea.Msg {
		out, err := r.Wait()
		return replyDoneMsg{id: r.ConversationID, outcome: out, err: err}
	}
}

// watchStore relays store changes as storeChangedMsg, one per command.
func watchStore(changes <-chan store.Change) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}
