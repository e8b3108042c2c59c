package message

import (
	"time"

	"github.com/example/comm-relay/domain/user"
)

// Message is a chat message scoped to one conversation. Messages are
// immutable once created.
type Message struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	Sender       string    `gorm:"size:36;not null" json:"sender"`
	Receiver     string    `gorm:"size:36;not null" json:"receiver"`
	Content      string    `gorm:"not null" json:"content"`
	Conversation string    `gorm:"size:36;not null;index:idx_messages_conversation_created" json:"conversation"`
	CreatedAt    time.Time `gorm:"index:idx_messages_conversation_created" json:"createdAt"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}

// Author is the sender display data attached to outgoing messages.
type Author struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
}

// View is a message enriched with its author, as delivered to clients.
type View struct {
	ID           string    `json:"id"`
	Sender       Author    `json:"sender"`
	Receiver     string    `json:"receiver"`
	Content      string    `json:"content"`
	Conversation string    `json:"conversation"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewView builds the client view of m. A nil author leaves only the sender ID.
func NewView(m *Message, author *user.User) View {
	v := View{
		ID:           m.ID,
		Sender:       Author{ID: m.Sender},
		Receiver:     m.Receiver,
		Content:      m.Content,
		Conversation: m.Conversation,
		CreatedAt:    m.CreatedAt,
	}
	if author != nil {
		v.Sender.FullName = author.FullName
		v.Sender.Avatar = author.Avatar
	}
	return v
}
