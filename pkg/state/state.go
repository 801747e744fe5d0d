// Package state defines the per-event State that flows through the
// thought process and the Envelope type branches use to queue outgoing
// replies.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/relaybot/relay/pkg/model"
)

// MatchedRecord is appended to State.Matched whenever a branch's matcher
// reports a match, regardless of whether execute later errors.
type MatchedRecord struct {
	BranchID string
	Match    any
	Captured any
	Err      error
	At       time.Time
}

// Dispatcher delivers a queued Envelope through the registered message
// adapter. The orchestrator supplies the concrete implementation so this
// package never imports the adapter package.
type Dispatcher interface {
	Dispatch(ctx context.Context, envelope *Envelope) error
}

// State is the mutable, per-message context threaded through middleware
// and branches. One State exists per inbound message or server event and
// is never shared across concurrent events.
type State struct {
	mu sync.Mutex

	Message *model.Message
	BotName string
	BotID   string

	matched    []MatchedRecord
	envelopes  []*Envelope
	done       bool
	scratch    map[string]any
	nluResult  any
	dispatcher Dispatcher
}

// New builds a State for an inbound message under the given bot identity.
func New(msg *model.Message, botName, botID string) *State {
	return &State{
		Message: msg,
		BotName: botName,
		BotID:   botID,
		scratch: make(map[string]any),
	}
}

// SetDispatcher wires the message adapter the respond stage uses to
// flush queued envelopes; called once by the orchestrator during setup.
func (s *State) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// AppendMatch records a branch match outcome. Safe for concurrent use
// even though a single State is normally driven by one goroutine at a
// time, since middleware pieces may run matches from a spawned goroutine.
func (s *State) AppendMatch(r MatchedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.matched = append(s.matched, r)
}

// Matched returns a read-only snapshot of the matched-branch sequence.
func (s *State) Matched() []MatchedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MatchedRecord(nil), s.matched...)
}

// HasMatched reports whether any branch has matched so far.
func (s *State) HasMatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matched) > 0
}

// SetDone marks the State so that no further stage runs after the
// current stage's middleware resolves.
func (s *State) SetDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
}

// Done reports whether a middleware piece has short-circuited the stage
// pipeline.
func (s *State) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Set stores an arbitrary scratch value under key, for passing data
// between middleware pieces and branch callbacks within one State.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratch[key] = value
}

// Get retrieves a scratch value previously stored with Set.
func (s *State) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.scratch[key]
	return v, ok
}

// SetNLUResult caches the NLU adapter's result for the understand stage
// so later branches in the same stage don't re-invoke the adapter.
func (s *State) SetNLUResult(result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nluResult = result
}

// NLUResult returns the cached NLU adapter result, if any.
func (s *State) NLUResult() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nluResult
}

// Write queues a new Envelope addressed to the message's room/user and
// appends text to it, returning the envelope for further tagging.
func (s *State) Write(text string) *Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	var roomID, userID string
	if s.Message != nil {
		if s.Message.Room != nil {
			roomID = s.Message.Room.ID
		}
		if s.Message.User != nil {
			userID = s.Message.User.ID
		}
	}
	env := NewEnvelope(roomID, userID)
	env.Write(text)
	s.envelopes = append(s.envelopes, env)
	return env
}

// Respond is Write followed by tagging the envelope as a reply, the
// common case of answering the message that triggered the branch.
func (s *State) Respond(text string) *Envelope {
	env := s.Write(text)
	_ = env.SetMethod(MethodReply)
	return env
}

// Envelopes returns the queued envelopes without clearing them.
func (s *State) Envelopes() []*Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Envelope(nil), s.envelopes...)
}

// DispatchEnvelopes flushes every queued envelope through the registered
// Dispatcher, clearing the queue before sending. With no Dispatcher set
// the queue is left as it is. The first dispatch
// error is returned after attempting every envelope. Bounding each call
// by requestTimeout is the Dispatcher's responsibility (the orchestrator's
// dispatchAdapter wraps the underlying adapter call in adapter.WithTimeout)
// since this package does not import adapter.
func (s *State) DispatchEnvelopes(ctx context.Context) error {
	s.mu.Lock()
	dispatcher := s.dispatcher
	if dispatcher == nil || len(s.envelopes) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.envelopes
	s.envelopes = nil
	s.mu.Unlock()

	var firstErr error
	for _, env := range pending {
		if err := dispatcher.Dispatch(ctx, env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
