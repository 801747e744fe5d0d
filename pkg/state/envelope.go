package state

import "fmt"

// Method is the delivery method an Envelope was tagged with. Once set it
// cannot change: reply/send/react/emote/topic are mutually exclusive.
type Method string

const (
	MethodReply Method = "reply"
	MethodSend  Method = "send"
	MethodReact Method = "react"
	MethodEmote Method = "emote"
	MethodTopic Method = "topic"
)

// Envelope accumulates outgoing text for a single delivery and enforces
// that its Method is set at most once, per the single-state-owner rule
// for outgoing replies.
type Envelope struct {
	RoomID string
	UserID string

	strings []string
	payload any
	method  Method
	tagged  bool
}

// NewEnvelope creates an envelope addressed to a room and/or user; at
// least one of roomID/userID should be non-empty so dispatch knows where
// to deliver it.
func NewEnvelope(roomID, userID string) *Envelope {
	return &Envelope{RoomID: roomID, UserID: userID}
}

// Write appends text to the envelope body.
func (e *Envelope) Write(text string) {
	e.strings = append(e.strings, text)
}

// Strings returns the accumulated text parts in write order.
func (e *Envelope) Strings() []string {
	return append([]string(nil), e.strings...)
}

// Text joins the accumulated parts with newlines.
func (e *Envelope) Text() string {
	out := ""
	for i, s := range e.strings {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

// SetPayload attaches an arbitrary structured payload to the envelope,
// for adapters that can deliver richer content than text (attachments,
// cards, embeds). Replaces any previously set payload.
func (e *Envelope) SetPayload(payload any) {
	e.payload = payload
}

// Payload returns the envelope's structured payload, or nil if none was
// set.
func (e *Envelope) Payload() any {
	return e.payload
}

// SetMethod tags the envelope with a delivery method. A second call with
// a different method fails; the same method again is a no-op.
func (e *Envelope) SetMethod(m Method) error {
	if e.tagged {
		if e.method != m {
			return fmt.Errorf("envelope already tagged as %q, cannot retag as %q", e.method, m)
		}
		return nil
	}
	e.method = m
	e.tagged = true
	return nil
}

// Method returns the tagged delivery method, defaulting to MethodSend
// when none was set.
func (e *Envelope) Method() Method {
	if !e.tagged {
		return MethodSend
	}
	return e.method
}
