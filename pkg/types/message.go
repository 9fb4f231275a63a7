package types

// Role identifies the author of a message in a plan document.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
	RoleWorkflow  Role = "workflow"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleError, RoleWorkflow:
		return true
	}
	return false
}

// Message is one entry in a plan document's append-ordered log.
//
// Key is assigned once when the message enters a log and is never reused,
// even after the message is removed. Content is the only field a streamed
// update or a local edit may change. SystemPrompt is a side channel
// addressed separately from Content.
type Message struct {
	Key          string      `json:"key"`
	Role         Role        `json:"role"`
	Content      string      `json:"content"`
	SystemPrompt *string     `json:"systemPrompt,omitempty"`
	Time         MessageTime `json:"time"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// CloneMessages returns a shallow copy of a message log. Callers receive
// log snapshots and must not mutate them in place; cloning at the store
// boundary keeps that contract cheap to honor.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
