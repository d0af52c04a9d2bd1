package chat

import (
	"strings"

	"promai/internal/config"
	"promai/pkg/types"
)

// Template renders a conversation into the text handed to the runtime.
type Template interface {
	Render(system string, history []types.Turn, message string) string
}

// TemplateFor returns the named template, plain for unknown names.
func TemplateFor(name string) Template {
	if name == config.TemplateChatML {
		return chatMLTemplate{}
	}
	return plainTemplate{}
}

// plainTemplate writes "User:" and "Assistant:" lines and ends with an open
// "Assistant:" for the model to complete.
type plainTemplate struct{}

func (plainTemplate) Render(system string, history []types.Turn, message string) string {
	var sb strings.Builder
	if s := strings.TrimSpace(system); s != "" {
		sb.WriteString("System: ")
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	if len(history) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, t := range history {
			sb.WriteString(roleLabel(t.Role))
			sb.WriteString(": ")
			sb.WriteString(t.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)
	sb.WriteString("\n\nAssistant:")
	return sb.String()
}

func roleLabel(r types.Role) string {
	if r == types.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// chatMLTemplate wraps each turn in <|im_start|> / <|im_end|> tags.
type chatMLTemplate struct{}

func (chatMLTemplate) Render(system string, history []types.Turn, message string) string {
	var sb strings.Builder
	if s := strings.TrimSpace(system); s != "" {
		sb.WriteString(roleTag("system", s))
		sb.WriteString("\n")
	}
	for _, t := range history {
		sb.WriteString(roleTag(string(t.Role), t.Content))
		sb.WriteString("\n")
	}
	sb.WriteString(roleTag("user", message))
	sb.WriteString("\n<|im_start|>assistant\n")
	return sb.String()
}

func roleTag(role, content string) string {
	return "<|im_start|>" + role + "\n" + content + "\n<|im_end|>"
}

// lastTurns returns at most n trailing turns.
func lastTurns(turns []types.Turn, n int) []types.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}
