// Package model defines the shared data types passed between adapters,
// branches and the thought process: messages, the users that send them
// and the rooms they are sent in.
package model

import "time"

// Kind identifies the semantic type of an incoming or server-originated event.
type Kind string

const (
	KindText    Kind = "text"
	KindEnter   Kind = "enter"
	KindLeave   Kind = "leave"
	KindTopic   Kind = "topic"
	KindServer  Kind = "server"
	KindCatchAll Kind = "catch-all"
)

// Message is the envelope-independent representation of something that
// happened: a line of text, a user joining or leaving a room, a topic
// change, or an arbitrary server event. Adapters construct Messages and
// hand them to the thought process; branches read them during matching.
type Message struct {
	ID        string
	Kind      Kind
	Text      string
	User      *User
	Room      *Room
	Timestamp time.Time

	// Event carries the name of a server event (e.g. "deploy.completed")
	// when Kind == KindServer. It is ignored otherwise.
	Event string

	// Data carries adapter-supplied payload for server events and is left
	// nil for ordinary text messages.
	Data map[string]any
}

// NewTextMessage builds a KindText message from a user in a room.
func NewTextMessage(id, text string, user *User, room *Room) *Message {
	return &Message{
		ID:        id,
		Kind:      KindText,
		Text:      text,
		User:      user,
		Room:      room,
		Timestamp: time.Now(),
	}
}

// NewServerMessage builds a KindServer message carrying an arbitrary event
// name and payload, used by adapters that bridge non-chat triggers (CI
// hooks, schedules, webhooks) into the thought process.
func NewServerMessage(id, event string, data map[string]any) *Message {
	return &Message{
		ID:        id,
		Kind:      KindServer,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// IsServer reports whether the message is a server event (KindServer);
// enter, leave, topic and text messages all report false.
func (m *Message) IsServer() bool {
	return m.Kind == KindServer
}
