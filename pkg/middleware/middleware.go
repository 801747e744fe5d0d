// Package middleware implements the piece-stack the thought process runs
// at each stage: hear, listen, understand, serve, act, respond, remember.
package middleware

import (
	"context"

	"github.com/relaybot/relay/pkg/relerr"
	"github.com/relaybot/relay/pkg/state"
)

// Done is a cleanup continuation scheduled to run after the stack's
// terminal complete callback, in LIFO order across however many pieces
// scheduled one.
type Done func(ctx context.Context, st *state.State)

// NextFunc continues to the next piece. Calling it with a Done replaces
// the in-scope cleanup continuation for the remainder of the stack; the
// replacement is pushed onto a LIFO so multiple wrapping pieces unwind
// in reverse registration order.
type NextFunc func(newDone ...Done)

// DoneFunc interrupts the stack: no further piece runs, the terminal
// complete callback is not invoked, and the stack resolves immediately.
type DoneFunc func()

// Piece is one step of a Stack. It must call next() to continue or
// done() to interrupt; returning an error without calling either still
// aborts the stack, annotated as a MiddlewareError. A piece that returns
// nil without calling either is treated the same as calling done(): the
// stack stops rather than silently advancing, since only next() is
// documented to continue it.
type Piece func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error

// Complete runs once every piece has called next(), before any scheduled
// Done cleanups unwind.
type Complete func(ctx context.Context, st *state.State) error

// Stack is an ordered list of pieces registered under a named stage, for
// tracing and error annotation.
type Stack struct {
	Type   string
	pieces []Piece
}

// NewStack creates an empty Stack for the named stage.
func NewStack(typ string) *Stack {
	return &Stack{Type: typ}
}

// Use appends a piece to the stack and returns it for chaining.
func (s *Stack) Use(p Piece) *Stack {
	s.pieces = append(s.pieces, p)
	return s
}

// Len reports how many pieces are registered.
func (s *Stack) Len() int { return len(s.pieces) }

// Run executes the stack's pieces in registration order against st. If
// every piece calls next(), complete runs and then every scheduled Done
// runs in LIFO order. If any piece calls done() — or returns without
// calling next() at all — the stack stops immediately: complete and the
// Done stack are both skipped.
//
// Pieces run synchronously on the caller's goroutine; the framework's
// cooperative single-threaded scheduling model doesn't require a real
// event-loop tick here, only that pieces observe each other's state
// changes in order, which a direct call chain already guarantees.
func (s *Stack) Run(ctx context.Context, st *state.State, complete Complete) error {
	var cleanups []Done
	interrupted := false

	var run func(i int) error
	run = func(i int) error {
		if interrupted {
			return nil
		}
		if i >= len(s.pieces) {
			if complete != nil {
				if err := complete(ctx, st); err != nil {
					return relerr.NewMiddlewareError(s.Type, err)
				}
			}
			for j := len(cleanups) - 1; j >= 0; j-- {
				cleanups[j](ctx, st)
			}
			return nil
		}

		piece := s.pieces[i]
		calledNext := false
		next := func(newDone ...Done) {
			calledNext = true
			if len(newDone) > 0 && newDone[0] != nil {
				cleanups = append(cleanups, newDone[0])
			}
		}
		doneFn := func() { interrupted = true }

		if err := piece(ctx, st, next, doneFn); err != nil {
			return relerr.NewMiddlewareError(s.Type, err)
		}
		if interrupted || !calledNext {
			return nil
		}
		return run(i + 1)
	}

	return run(0)
}
