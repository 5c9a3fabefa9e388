package conversation

import "fmt"

// Conversation is the ordered message history of one thread. Messages are
// only ever appended.
type Conversation struct {
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`
}

// New creates an empty conversation for the given thread.
func New(threadID string) *Conversation {
	return &Conversation{ThreadID: threadID}
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// Last returns the most recent message and false when the history is empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{ThreadID: c.ThreadID}
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}

// Attachments returns every file uploaded in the conversation, in upload
// order. A later upload with the same filename replaces an earlier one.
func (c *Conversation) Attachments() []Attachment {
	var out []Attachment
	index := make(map[string]int)
	for _, m := range c.Messages {
		if m.Kind != KindHuman {
			continue
		}
		for _, a := range m.Attachments {
			if i, ok := index[a.Filename]; ok {
				out[i] = a
				continue
			}
			index[a.Filename] = len(out)
			out = append(out, a)
		}
	}
	return out
}

// Validate checks that every tool result references a tool call emitted by
// an earlier assistant message of the same conversation.
func (c *Conversation) Validate() error {
	emitted := make(map[string]bool)
	for i, m := range c.Messages {
		switch m.Kind {
		case KindAssistant:
			for _, call := range m.ToolCalls {
				emitted[call.ID] = true
			}
		case KindTool:
			for _, r := range m.Results() {
				if !emitted[r.ToolCallID] {
					return fmt.Errorf("message %d: tool result references unknown tool call %q", i, r.ToolCallID)
				}
			}
		case KindHuman, KindUnknown:
		}
	}
	return nil
}
