package message

import (
	"time"
)

// Body is the content state of a message: Active or Deleted.
type Body interface {
	isBody()
}

// Active carries the visible content of a live message.
type Active struct {
	Content string
}

// Deleted is terminal. The content is gone, the row stays.
type Deleted struct{}

func (Active) isBody()  {}
func (Deleted) isBody() {}

// Message represents the messages table
type Message struct {
	ID        string
	LocalID   string
	ConvoID   string
	SenderID  string
	Body      Body
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Message) IsDeleted() bool {
	_, ok := m.Body.(Deleted)
	return ok
}

// Content projects the body to its wire form: nil once deleted.
func (m Message) Content() *string {
	if active, ok := m.Body.(Active); ok {
		content := active.Content
		return &content
	}
	return nil
}

// Edit replaces the content of an active message. It reports false and
// leaves the body alone when the message is deleted.
func (m *Message) Edit(content string) bool {
	if m.IsDeleted() {
		return false
	}
	m.Body = Active{Content: content}
	return true
}

func (m *Message) Delete() {
	m.Body = Deleted{}
}

// Touch advances UpdatedAt to at, never moving it backwards.
func (m *Message) Touch(at time.Time) {
	if at.After(m.UpdatedAt) {
		m.UpdatedAt = at
	}
}
