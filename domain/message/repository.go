package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository provides access to message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new message. An empty ID is filled with a time-ordered UUID, so ID order
// breaks ties between rows created in the same instant.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message id: %w", err)
		}
		m.ID = id.String()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByConversation returns all messages of a conversation, oldest first.
func (r *Repository) ListByConversation(ctx context.Context, conversationID string) ([]*Message, error) {
	var messages []*Message
	err := r.db.WithContext(ctx).
		Where("conversation = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
