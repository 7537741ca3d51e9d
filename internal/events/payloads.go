package events

import (
	"fmt"
	"strings"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	relay_errors "convo-relay/pkg/errors"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: missing %s", relay_errors.ErrValidation, field)
	}
	return nil
}

type CreateConvoPayload struct {
	ID           string   `json:"id"`
	LocalID      *string  `json:"local_id"`
	Title        *string  `json:"title"`
	Participants []string `json:"participants"`
}

func (p CreateConvoPayload) Validate() error {
	if err := required("id", p.ID); err != nil {
		return err
	}
	for _, uid := range p.Participants {
		if strings.TrimSpace(uid) == "" {
			return fmt.Errorf("%w: empty participant id", relay_errors.ErrValidation)
		}
	}
	return nil
}

type UpdateConvoPayload struct {
	ID      string  `json:"id"`
	LocalID *string `json:"local_id"`
	Title   *string `json:"title"`
}

func (p UpdateConvoPayload) Validate() error {
	return required("id", p.ID)
}

type SendMessagePayload struct {
	ConvoID string  `json:"convo_id"`
	LocalID string  `json:"local_id"`
	Content *string `json:"content"`
}

func (p SendMessagePayload) Validate() error {
	if err := required("convo_id", p.ConvoID); err != nil {
		return err
	}
	if err := required("local_id", p.LocalID); err != nil {
		return err
	}
	if p.Content == nil {
		return fmt.Errorf("%w: missing content", relay_errors.ErrValidation)
	}
	return nil
}

type DeleteMessagePayload struct {
	ID      string  `json:"id"`
	LocalID *string `json:"local_id"`
}

func (p DeleteMessagePayload) Validate() error {
	return required("id", p.ID)
}

type UpdateMessagePayload struct {
	ID      string  `json:"id"`
	Content *string `json:"content"`
}

func (p UpdateMessagePayload) Validate() error {
	return required("id", p.ID)
}

// ReceiptPayload is shared by MESSAGE_DELIVERED and MESSAGE_SEEN.
type ReceiptPayload struct {
	ID      string  `json:"id"`
	ConvoID string  `json:"convo_id"`
	LocalID *string `json:"local_id"`
}

func (p ReceiptPayload) Validate() error {
	if err := required("id", p.ID); err != nil {
		return err
	}
	return required("convo_id", p.ConvoID)
}

// Outbound payloads.

type ConvoView struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	IsGroup   *bool     `json:"is_group,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConvoEnvelope struct {
	Convo ConvoView `json:"convo"`
}

func nullableTitle(c conversation.Convo) *string {
	if !c.Title.Valid {
		return nil
	}
	title := c.Title.String
	return &title
}

// NewCreatedConvo is the CREATE_CONVO payload.
func NewCreatedConvo(c conversation.Convo) ConvoEnvelope {
	isGroup := c.IsGroup
	return ConvoEnvelope{Convo: ConvoView{ID: c.ID, Title: nullableTitle(c), IsGroup: &isGroup, UpdatedAt: c.UpdatedAt}}
}

// NewUpdatedConvo is the UPDATE_CONVO payload; is_group is not part of it.
func NewUpdatedConvo(c conversation.Convo) ConvoEnvelope {
	return ConvoEnvelope{Convo: ConvoView{ID: c.ID, Title: nullableTitle(c), UpdatedAt: c.UpdatedAt}}
}

type MessageView struct {
	ID        string    `json:"id"`
	LocalID   string    `json:"local_id"`
	ConvoID   string    `json:"convo_id"`
	SenderID  string    `json:"sender_id"`
	Content   *string   `json:"content"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewMessageView(m message.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		LocalID:   m.LocalID,
		ConvoID:   m.ConvoID,
		SenderID:  m.SenderID,
		Content:   m.Content(),
		Deleted:   m.IsDeleted(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type MessageEnvelope struct {
	Message MessageView `json:"message"`
}

func NewMessageEnvelope(m message.Message) MessageEnvelope {
	return MessageEnvelope{Message: NewMessageView(m)}
}

type DeletedMessage struct {
	ID      string `json:"id"`
	ConvoID string `json:"convo_id"`
}

type Receipt struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}
