package exchange

import "time"

// Exchange is a conversation between exactly two participants.
// The relay only reads exchanges; the API process creates them.
type Exchange struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Initiator string    `gorm:"size:36;not null;index" json:"initiator"`
	Receiver  string    `gorm:"size:36;not null;index" json:"receiver"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for Exchange model.
func (Exchange) TableName() string {
	return "exchanges"
}

// IsMember reports whether userID is one of the two participants.
func (e *Exchange) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	return e.Initiator == userID || e.Receiver == userID
}

// Other returns the participant that is not userID. The second return value
// is false when userID is not a member.
func (e *Exchange) Other(userID string) (string, bool) {
	switch {
	case !e.IsMember(userID):
		return "", false
	case e.Initiator == userID:
		return e.Receiver, true
	default:
		return e.Initiator, true
	}
}
