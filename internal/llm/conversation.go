package llm

import "sync"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the append-only transcript sent to the narrator. Its growth
// is bounded by what callers choose to append, not by trimming.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	size     int
	onAppend func(Message)
}

// NewConversation creates an empty transcript. onAppend, if non-nil, sees
// every appended message in order.
func NewConversation(onAppend func(Message)) *Conversation {
	return &Conversation{onAppend: onAppend}
}

// Append adds a message to the end of the transcript.
func (c *Conversation) Append(role, content string) {
	m := Message{Role: role, Content: content}
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.size += len(content)
	hook := c.onAppend
	c.mu.Unlock()
	if hook != nil {
		hook(m)
	}
}

func (c *Conversation) System(content string)    { c.Append(RoleSystem, content) }
func (c *Conversation) User(content string)      { c.Append(RoleUser, content) }
func (c *Conversation) Assistant(content string) { c.Append(RoleAssistant, content) }

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Size returns the total content length in bytes.
func (c *Conversation) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
