package exchange

import "testing"

func TestExchange_Membership(t *testing.T) {
	ex := &Exchange{ID: "X", Initiator: "user1", Receiver: "user2"}

	tests := []struct {
		name      string
		userID    string
		member    bool
		wantOther string
	}{
		{"initiator", "user1", true, "user2"},
		{"receiver", "user2", true, "user1"},
		{"outsider", "user3", false, ""},
		{"empty id", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ex.IsMember(tt.userID); got != tt.member {
				t.Errorf("IsMember(%q) = %v, want %v", tt.userID, got, tt.member)
			}
			other, ok := ex.Other(tt.userID)
			if ok != tt.member {
				t.Errorf("Other(%q) ok = %v, want %v", tt.userID, ok, tt.member)
			}
			if other != tt.wantOther {
				t.Errorf("Other(%q) = %q, want %q", tt.userID, other, tt.wantOther)
			}
		})
	}
}
