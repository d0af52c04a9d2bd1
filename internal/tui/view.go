package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"promai/pkg/types"
)

// layout sizes the panes for the current window.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	chatWidth := max(m.width-sidebarWidth-4, 20)
	m.input.SetWidth(chatWidth)
	// borders: chat pane 2, input 2; status line 1; input 3
	m.viewport.Width = chatWidth
	m.viewport.Height = max(m.height-m.input.Height()-7, 3)
	m.progress.Width = min(chatWidth, 60)
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(chatWidth-2))
	if err == nil {
		m.renderer = r
	}
}

// refresh rebuilds the transcript shown in the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	var sb strings.Builder
	if len(m.turns) == 0 && m.partial == "" && len(m.extra) == 0 {
		sb.WriteString(dimStyle.Render("Start typing to begin a new conversation."))
		return sb.String()
	}
	for _, t := range m.turns {
		sb.WriteString(m.renderTurn(t))
		sb.WriteString("\n")
	}
	for _, e := range m.extra {
		sb.WriteString(botStyle.Render("Assistant"))
		sb.WriteString(" ")
		sb.WriteString(noteStyle.Render("(" + e.note + ", not saved)"))
		sb.WriteString("\n")
		sb.WriteString(e.text)
		sb.WriteString("\n\n")
	}
	if m.streaming {
		sb.WriteString(botStyle.Render("Assistant"))
		sb.WriteString("\n")
		sb.WriteString(m.partial)
		sb.WriteString(m.spinner.View())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderTurn(t types.Turn) string {
	if t.Role == types.RoleUser {
		return userStyle.Render("You") + "\n" + t.Content + "\n"
	}
	body := t.Content
	if m.renderer != nil {
		if out, err := m.renderer.Render(t.Content); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return botStyle.Render("Assistant") + "\n" + body + "\n"
}

// View renders the window.
func (m Model) View() string {
	chatPane := chatStyle.Render(m.viewport.View())
	box := inputOffStyle
	if m.ready && !m.streaming {
		box = inputStyle
	}
	right := lipgloss.JoinVertical(lipgloss.Left, chatPane, box.Render(m.input.View()), m.statusLine())
	height := lipgloss.Height(right) - 2
	left := sidebarStyle.Width(sidebarWidth - 4).Height(max(height, 1)).Render(m.sidebar())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) sidebar() string {
	var sb strings.Builder
	sb.WriteString(dimStyle.Render("Conversations"))
	sb.WriteString("\n\n")
	width := sidebarWidth - 6
	listed := false
	for _, meta := range m.metas {
		line := runewidth.Truncate(meta.Title, width, "...")
		if meta.ID == m.convID {
			listed = true
			sb.WriteString(selectedStyle.Render("> " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	if !listed {
		sb.WriteString(selectedStyle.Render("> " + runewidth.Truncate(m.title, width, "...")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) statusLine() string {
	if m.loading {
		return fmt.Sprintf("%s %s", m.progress.ViewAs(float64(m.percent)/100), statusStyle.Render(string(m.stage)))
	}
	var parts []string
	if m.ready {
		parts = append(parts, readyStyle.Render("●")+" "+statusStyle.Render(m.status))
	} else {
		parts = append(parts, statusStyle.Render("○ "+m.status))
	}
	if len(m.attachments) > 0 {
		parts = append(parts, noteStyle.Render(fmt.Sprintf("[%d attached]", len(m.attachments))))
	}
	if m.err != "" {
		parts = append(parts, errorStyle.Render(m.err))
	} else {
		var help []string
		for _, b := range m.keys.help() {
			h := b.Help()
			help = append(help, h.Key+" "+h.Desc)
		}
		parts = append(parts, dimStyle.Render(strings.Join(help, " · ")))
	}
	return strings.Join(parts, "  ")
}
