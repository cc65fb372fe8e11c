package llm

// Conversation is an ordered, chronological list of messages.
//
// At submission time a Conversation may end in a placeholder message (role
// assistant, empty content): the append point for streamed tokens.
// Placeholders are never sent upstream, wherever they sit; a failed reply
// leaves one behind, followed by its "[Error]" message.
type Conversation []Message

// Payload returns the messages to submit, excluding every placeholder.
func (c Conversation) Payload() []Message {
	n := 0
	for _, m := range c {
		if !m.IsPlaceholder() {
			n++
		}
	}
	if n == len(c) {
		return c
	}

	out := make([]Message, 0, n)
	for _, m := range c {
		if !m.IsPlaceholder() {
			out = append(out, m)
		}
	}
	return out
}

// WithPlaceholder returns c with an empty assistant message appended, unless
// c already ends in one.
func (c Conversation) WithPlaceholder() Conversation {
	if last, ok := c.Last(); ok && last.IsPlaceholder() {
		return c
	}
	return append(c, Message{Role: RoleAssistant})
}

// Last returns the final message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// AppendToken appends tok to the trailing assistant message. If the
// conversation does not end in an assistant message, one is synthesized so
// streamed content always lands on the last element.
func (c Conversation) AppendToken(tok string) Conversation {
	if n := len(c); n > 0 && c[n-1].Role == RoleAssistant {
		c[n-1].Content += tok
		return c
	}
	return append(c, Message{Role: RoleAssistant, Content: tok})
}
