package events

import (
	"encoding/json"
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// NotificationCreatedEvent is emitted after the bridge persists a notification.
type NotificationCreatedEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Message        string    `json:"message"`
	Link           string    `json:"link"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// AgreementStatusChangedEvent is emitted when the API process reports an
// agreement status change. Agreement is forwarded to clients untouched.
type AgreementStatusChangedEvent struct {
	ProposerID string          `json:"proposer_id"`
	ReceiverID string          `json:"receiver_id"`
	Status     string          `json:"status"`
	Agreement  json.RawMessage `json:"agreement"`
}

// PushRequestedEvent asks the push module to deliver a Web Push message.
type PushRequestedEvent struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
}

// Event definitions for the relay.
var (
	NotificationCreatedV1 = helper.EventDefinition[NotificationCreatedEvent](
		"bridge",
		"NotificationCreated",
		"v1",
	)

	AgreementStatusChangedV1 = helper.EventDefinition[AgreementStatusChangedEvent](
		"bridge",
		"AgreementStatusChanged",
		"v1",
	)

	PushRequestedV1 = helper.EventDefinition[PushRequestedEvent](
		"messaging",
		"PushRequested",
		"v1",
	)
)
