// Package llm holds the provider-agnostic conversation types shared by the
// chatstream server, client, and token producers.
package llm

// Role tags the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

// IsPlaceholder reports whether m is an empty assistant message awaiting
// streamed content.
func (m Message) IsPlaceholder() bool {
	return m.Role == RoleAssistant && m.Content == ""
}
