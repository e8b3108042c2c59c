package signaling

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/example/comm-relay/domain/exchange"
	"github.com/example/comm-relay/modules/hub"
	"github.com/go-monolith/mono/pkg/types"
)

// Server-to-client signaling events.
const (
	EventOfferReceived     = "offer-received"
	EventAnswerReceived    = "answer-received"
	EventCandidateReceived = "candidate-received"
	EventHangupReceived    = "hangup-received"
)

// OfferReceived is delivered to the callee.
type OfferReceived struct {
	Offer    json.RawMessage `json:"offer"`
	CallerID string          `json:"callerId"`
}

// AnswerReceived is delivered to the caller.
type AnswerReceived struct {
	Answer json.RawMessage `json:"answer"`
}

// CandidateReceived carries one ICE candidate to the other side.
type CandidateReceived struct {
	Candidate json.RawMessage `json:"candidate"`
}

// HangupReceived ends the call on the other side.
type HangupReceived struct{}

// ExchangeFinder resolves conversation membership.
type ExchangeFinder interface {
	FindByID(ctx context.Context, id string) (*exchange.Exchange, error)
}

// Emitter delivers an event to a broadcast group.
type Emitter interface {
	Emit(group, event string, payload any) int
}

// Relay forwards call-setup envelopes between the two members of a
// conversation. It keeps no call state and never looks inside payloads.
type Relay struct {
	exchanges ExchangeFinder
	emitter   Emitter
	logger    types.Logger
}

// NewRelay creates a signaling relay.
func NewRelay(exchanges ExchangeFinder, emitter Emitter, logger types.Logger) *Relay {
	return &Relay{exchanges: exchanges, emitter: emitter, logger: logger}
}

// Offer forwards an SDP offer to the other member. The result reports
// whether anything was forwarded; callers must not surface it to clients.
func (r *Relay) Offer(ctx context.Context, callerID, conversationID string, offer json.RawMessage) bool {
	return r.forward(ctx, callerID, conversationID, EventOfferReceived, OfferReceived{Offer: offer, CallerID: callerID})
}

// Answer forwards an SDP answer to the other member.
func (r *Relay) Answer(ctx context.Context, callerID, conversationID string, answer json.RawMessage) bool {
	return r.forward(ctx, callerID, conversationID, EventAnswerReceived, AnswerReceived{Answer: answer})
}

// IceCandidate forwards an ICE candidate to the other member. Candidates
// are not sequenced against offers or answers.
func (r *Relay) IceCandidate(ctx context.Context, callerID, conversationID string, candidate json.RawMessage) bool {
	return r.forward(ctx, callerID, conversationID, EventCandidateReceived, CandidateReceived{Candidate: candidate})
}

// Hangup tells the other member the call is over.
func (r *Relay) Hangup(ctx context.Context, callerID, conversationID string) bool {
	return r.forward(ctx, callerID, conversationID, EventHangupReceived, HangupReceived{})
}

func (r *Relay) forward(ctx context.Context, callerID, conversationID, event string, payload any) bool {
	ex, err := r.exchanges.FindByID(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, exchange.ErrNotFound) {
			r.logger.Warn("Signaling lookup failed", "conversation", conversationID, "error", err)
		}
		return false
	}
	other, ok := ex.Other(callerID)
	if !ok {
		r.logger.Debug("Dropped signaling from non-member", "user", callerID, "conversation", conversationID, "event", event)
		return false
	}
	r.emitter.Emit(hub.UserGroup(other), event, payload)
	return true
}
