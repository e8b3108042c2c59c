package push

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a user has no push subscription.
var ErrNotFound = errors.New("push subscription not found")

// Repository provides access to push subscription storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new push subscription repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores s, replacing any existing subscription of the same user.
func (r *Repository) Upsert(ctx context.Context, s *Subscription) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

// FindByUser retrieves the subscription of userID.
func (r *Repository) FindByUser(ctx context.Context, userID string) (*Subscription, error) {
	var s Subscription
	if err := r.db.WithContext(ctx).First(&s, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find push subscription: %w", err)
	}
	return &s, nil
}

// DeleteByUser removes the subscription of userID. Deleting a missing
// subscription is not an error.
func (r *Repository) DeleteByUser(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Delete(&Subscription{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
