package notification

import "time"

// DefaultListLimit bounds the notification history returned to clients.
const DefaultListLimit = 20

// Notification is a persisted message targeted at exactly one user.
type Notification struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index:idx_notifications_user_created" json:"user"`
	Message   string    `gorm:"not null" json:"message"`
	IsRead    bool      `gorm:"not null;default:false" json:"isRead"`
	Link      string    `gorm:"size:500;not null" json:"link"`
	CreatedAt time.Time `gorm:"index:idx_notifications_user_created" json:"createdAt"`
}

// TableName returns the table name for Notification model.
func (Notification) TableName() string {
	return "notifications"
}
