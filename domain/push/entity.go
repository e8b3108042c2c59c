package push

import "time"

// Subscription is a user's single Web Push registration.
type Subscription struct {
	UserID    string    `gorm:"primarykey;size:36" json:"user"`
	Endpoint  string    `gorm:"size:1000;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:200;not null" json:"p256dh"`
	Auth      string    `gorm:"size:100;not null" json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for Subscription model.
func (Subscription) TableName() string {
	return "push_subscriptions"
}
