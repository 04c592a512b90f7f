package domain

// MessageLog is the ordered view of the conversation. Insertion order is
// arrival order at the client, not a global order.
// It is not safe for concurrent use: a single owner mutates it.
type MessageLog struct {
	messages []ChatMessage
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(message ChatMessage) {
	l.messages = append(l.messages, message)
}

// Replace swaps the whole view for an authoritative history.
func (l *MessageLog) Replace(messages []ChatMessage) {
	l.messages = append([]ChatMessage(nil), messages...)
}

func (l *MessageLog) Clear() {
	l.messages = nil
}

func (l *MessageLog) Len() int {
	return len(l.messages)
}

// Messages returns a copy, callers may keep it.
func (l *MessageLog) Messages() []ChatMessage {
	return append([]ChatMessage(nil), l.messages...)
}
