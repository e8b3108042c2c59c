package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// State is the call state kept by each end of a conversation.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateReceiving
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateReceiving:
		return "receiving"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition is returned when an event is not legal in the current state.
	ErrInvalidTransition = errors.New("invalid call state transition")
	// ErrWrongSDPType is returned when an offer is not an offer or an answer not an answer.
	ErrWrongSDPType = errors.New("unexpected session description type")
)

// Call is the client-side call state machine. The relay never runs it; it
// lives at both ends and is driven by the events the relay forwards.
//
//	idle -> calling      (StartCall)
//	idle -> receiving    (ReceiveOffer)
//	calling -> connected (ReceiveAnswer)
//	receiving -> connected (Accept)
//	any -> idle          (Hangup, RemoteHangup)
type Call struct {
	mu         sync.Mutex
	state      State
	peerID     string
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
}

// NewCall returns an idle call.
func NewCall() *Call {
	return &Call{}
}

// State returns the current state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerID returns the identifier of the caller of an incoming call.
func (c *Call) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// RemoteDescription returns the remote offer or answer, if any.
func (c *Call) RemoteDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Candidates returns the remote ICE candidates received so far.
func (c *Call) Candidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.candidates...)
}

// StartCall places an outgoing call with a local offer.
func (c *Call) StartCall(offer webrtc.SessionDescription) error {
	if offer.Type != webrtc.SDPTypeOffer {
		return ErrWrongSDPType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return c.invalid("start call")
	}
	c.state = StateCalling
	c.local = &offer
	return nil
}

// ReceiveOffer records an incoming call.
func (c *Call) ReceiveOffer(callerID string, offer webrtc.SessionDescription) error {
	if offer.Type != webrtc.SDPTypeOffer {
		return ErrWrongSDPType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return c.invalid("receive offer")
	}
	c.state = StateReceiving
	c.peerID = callerID
	c.remote = &offer
	return nil
}

// Accept answers an incoming call.
func (c *Call) Accept(answer webrtc.SessionDescription) error {
	if answer.Type != webrtc.SDPTypeAnswer {
		return ErrWrongSDPType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReceiving {
		return c.invalid("accept")
	}
	c.state = StateConnected
	c.local = &answer
	return nil
}

// ReceiveAnswer completes an outgoing call.
func (c *Call) ReceiveAnswer(answer webrtc.SessionDescription) error {
	if answer.Type != webrtc.SDPTypeAnswer {
		return ErrWrongSDPType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCalling {
		return c.invalid("receive answer")
	}
	c.state = StateConnected
	c.remote = &answer
	return nil
}

// AddRemoteCandidate stores a remote ICE candidate. Candidates may arrive in
// any state, including before the offer they belong to.
func (c *Call) AddRemoteCandidate(candidate webrtc.ICECandidateInit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate)
}

// Hangup ends the call from this side, or aborts it before an answer.
func (c *Call) Hangup() {
	c.reset()
}

// RemoteHangup ends the call after the other side hung up.
func (c *Call) RemoteHangup() {
	c.reset()
}

func (c *Call) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.peerID = ""
	c.local = nil
	c.remote = nil
	c.candidates = nil
}

func (c *Call) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, c.state)
}

// Apply drives the call from a server event as written by the relay.
func (c *Call) Apply(event string, data json.RawMessage) error {
	switch event {
	case EventOfferReceived:
		var p struct {
			Offer    webrtc.SessionDescription `json:"offer"`
			CallerID string                    `json:"callerId"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return c.ReceiveOffer(p.CallerID, p.Offer)
	case EventAnswerReceived:
		var p struct {
			Answer webrtc.SessionDescription `json:"answer"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		return c.ReceiveAnswer(p.Answer)
	case EventCandidateReceived:
		var p struct {
			Candidate webrtc.ICECandidateInit `json:"candidate"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		c.AddRemoteCandidate(p.Candidate)
		return nil
	case EventHangupReceived:
		c.RemoteHangup()
		return nil
	default:
		return fmt.Errorf("unknown signaling event %q", event)
	}
}
