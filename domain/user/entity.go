package user

// User holds the display fields the relay reads for message authors.
// Users are owned by the API process.
type User struct {
	ID       string `gorm:"primarykey;size:36" json:"id"`
	FullName string `gorm:"size:200" json:"fullName"`
	Avatar   string `gorm:"size:500" json:"avatar,omitempty"`
}

// TableName returns the table name for User model.
func (User) TableName() string {
	return "users"
}
