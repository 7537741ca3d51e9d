package httpdto

import (
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
)

type ConvoResponse struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromConvo(c conversation.Convo) ConvoResponse {
	resp := ConvoResponse{
		ID:        c.ID,
		IsGroup:   c.IsGroup,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Title.Valid {
		title := c.Title.String
		resp.Title = &title
	}
	return resp
}

func FromConvos(convos []conversation.Convo) []ConvoResponse {
	out := make([]ConvoResponse, 0, len(convos))
	for _, c := range convos {
		out = append(out, FromConvo(c))
	}
	return out
}

// MessageResponse carries a null content for deleted messages.
type MessageResponse struct {
	ID        string    `json:"id"`
	LocalID   string    `json:"local_id"`
	ConvoID   string    `json:"convo_id"`
	SenderID  string    `json:"sender_id"`
	Content   *string   `json:"content"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromMessage(m message.Message) MessageResponse {
	return MessageResponse{
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

func FromMessages(msgs []message.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromMessage(m))
	}
	return out
}

type HealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Connections int    `json:"connections"`
	Users       int    `json:"users"`
}
