package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/example/comm-relay/events"
)

// Channels published by the API process.
const (
	ChannelAgreementNew    = "agreement:new"
	ChannelAgreementUpdate = "agreement:update"
)

var (
	// ErrUnknownChannel is returned for envelopes no mapping is registered for.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrMalformedPayload is returned when an envelope cannot be mapped.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is one message received from the pub/sub channel.
type Envelope struct {
	Channel string
	Payload json.RawMessage
}

// Target is a notification to persist and deliver to one user.
type Target struct {
	UserID  string
	Message string
	Link    string
}

// Result is what a mapping derives from one envelope.
type Result struct {
	Targets []Target
	// StatusChange is set when both parties should see the new agreement state.
	StatusChange *events.AgreementStatusChangedEvent
}

// MappingFunc turns a channel payload into notifications.
type MappingFunc func(payload json.RawMessage) (Result, error)

// Mapper dispatches envelopes to the mapping registered for their channel.
type Mapper struct {
	mappings map[string]MappingFunc
}

// NewMapper returns a mapper with the agreement mappings registered.
func NewMapper() *Mapper {
	m := &Mapper{mappings: make(map[string]MappingFunc)}
	m.Register(ChannelAgreementNew, MapAgreementNew)
	m.Register(ChannelAgreementUpdate, MapAgreementUpdate)
	return m
}

// Register sets the mapping for channel, replacing any previous one.
func (m *Mapper) Register(channel string, fn MappingFunc) {
	m.mappings[channel] = fn
}

// Channels returns the registered channel names, sorted.
func (m *Mapper) Channels() []string {
	channels := make([]string, 0, len(m.mappings))
	for ch := range m.mappings {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Map applies the mapping registered for env.Channel.
func (m *Mapper) Map(env Envelope) (Result, error) {
	fn, ok := m.mappings[env.Channel]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownChannel, env.Channel)
	}
	res, err := fn(env.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", env.Channel, err)
	}
	return res, nil
}

// Agreement statuses set by the API process.
const (
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

type agreement struct {
	ID              string `json:"_id"`
	Proposer        string `json:"proposer"`
	Receiver        string `json:"receiver"`
	Status          string `json:"status"`
	RelatedExchange string `json:"relatedExchange"`
}

type agreementNewPayload struct {
	Agreement    agreement `json:"agreement"`
	ProposerName string    `json:"proposerName"`
}

type agreementUpdatePayload struct {
	Agreement json.RawMessage `json:"agreement"`
	ActorName string          `json:"actorName"`
	ActorID   string          `json:"actorId"`
}

// MapAgreementNew notifies the receiver of a new proposal.
func MapAgreementNew(payload json.RawMessage) (Result, error) {
	var p agreementNewPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if p.Agreement.Receiver == "" {
		return Result{}, fmt.Errorf("%w: agreement.receiver missing", ErrMalformedPayload)
	}

	return Result{Targets: []Target{{
		UserID:  p.Agreement.Receiver,
		Message: fmt.Sprintf("%s sent you an agreement proposal.", p.ProposerName),
		Link:    "/dashboard",
	}}}, nil
}

// MapAgreementUpdate notifies the party that did not act on the agreement
// and announces the new status to both parties.
func MapAgreementUpdate(payload json.RawMessage) (Result, error) {
	var p agreementUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	var a agreement
	if len(p.Agreement) == 0 {
		return Result{}, fmt.Errorf("%w: agreement missing", ErrMalformedPayload)
	}
	if err := json.Unmarshal(p.Agreement, &a); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if a.Proposer == "" || a.Receiver == "" {
		return Result{}, fmt.Errorf("%w: agreement parties missing", ErrMalformedPayload)
	}

	target, err := counterpart(a, p.ActorID)
	if err != nil {
		return Result{}, err
	}

	link := "/dashboard"
	if a.Status == StatusAccepted && a.RelatedExchange != "" {
		link = "/exchange/" + a.RelatedExchange
	}

	return Result{
		Targets: []Target{{
			UserID:  target,
			Message: fmt.Sprintf("%s has %s your agreement proposal.", p.ActorName, a.Status),
			Link:    link,
		}},
		StatusChange: &events.AgreementStatusChangedEvent{
			ProposerID: a.Proposer,
			ReceiverID: a.Receiver,
			Status:     a.Status,
			Agreement:  p.Agreement,
		},
	}, nil
}

// counterpart resolves the party that did not act. Without an explicit actor
// the status decides: only the receiver accepts or declines, only the
// proposer cancels.
func counterpart(a agreement, actorID string) (string, error) {
	if actorID != "" {
		switch actorID {
		case a.Proposer:
			return a.Receiver, nil
		case a.Receiver:
			return a.Proposer, nil
		default:
			return "", fmt.Errorf("%w: actor %s is not a party", ErrMalformedPayload, actorID)
		}
	}

	switch a.Status {
	case StatusAccepted, StatusDeclined:
		return a.Proposer, nil
	case StatusCancelled:
		return a.Receiver, nil
	default:
		return "", fmt.Errorf("%w: unexpected status %q", ErrMalformedPayload, a.Status)
	}
}
