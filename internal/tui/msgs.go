package tui

import (
	"promai/internal/chat"
	"promai/internal/manager"
	"promai/pkg/types"
)

// --- Controller -> TUI messages (sent from worker goroutines) ---

// LoadProgressMsg reports a load stage.
type LoadProgressMsg struct {
	Stage   types.Stage
	Percent int
}

// ChunkMsg carries one generated chunk.
type ChunkMsg struct {
	Text  string
	Final bool
}

// ErrorMsg carries a failure reported by the controller.
type ErrorMsg struct {
	Kind    string
	Message string
}

// NoticeMsg carries a non-fatal notice, such as a repaired conversation.
type NoticeMsg struct {
	Message string
}

// SessionEventMsg carries a model lifecycle event such as "unload".
type SessionEventMsg struct {
	Name  string
	Model string
}

// --- Internal messages ---

type loadDoneMsg struct{ err error }

type replyStartedMsg struct{ reply *chat.Reply }

type sendFailedMsg struct{ err error }

type replyDoneMsg struct {
	id      string
	outcome manager.Outcome
	err     error
}

type metasMsg struct {
	metas []types.ConversationMeta
	err   error
}

type conversationMsg struct {
	conv *types.Conversation
	err  error
}

type storeChangedMsg struct{}
