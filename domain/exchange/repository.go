package exchange

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when an exchange is not found.
var ErrNotFound = errors.New("exchange not found")

// Repository provides read access to exchange membership.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new exchange repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves an exchange by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*Exchange, error) {
	var ex Exchange
	if err := r.db.WithContext(ctx).First(&ex, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find exchange: %w", err)
	}
	return &ex, nil
}
