// Package branch implements the matchable units a Path dispatches to: a
// Branch pairs a matcher with an action (callback or bit id) and a set
// of registration flags.
package branch

import (
	"context"
	"fmt"

	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/relerr"
	"github.com/relaybot/relay/pkg/state"
)

// MatchResult is what a Matcher reports for one message/state pair.
type MatchResult struct {
	Matched  bool
	Match    any
	Captured any
}

// Matcher is the part of a Branch that decides whether it applies.
type Matcher interface {
	Match(msg *model.Message, st *state.State) (*MatchResult, error)
}

// Callback runs when a Branch's matcher reports a match. It receives the
// State so it can read captures, write envelopes, or stash scratch data.
type Callback func(ctx context.Context, st *state.State) error

// BitRunner invokes a bit by id; the orchestrator implements it so branch
// execution can chain into scenes without this package importing the
// orchestrator (which imports branch, so that would be an import cycle).
type BitRunner interface {
	RunBit(ctx context.Context, id string, st *state.State) error
}

// Branch is one matchable unit registered on a Path. Construct one via
// the New* factory functions in this package rather than the struct
// literal, so the force/once/id defaults stay consistent.
type Branch struct {
	ID    string
	Force bool
	Once  bool

	matcher  Matcher
	callback Callback
	bitID    string
}

func newBranch(id string, force bool, matcher Matcher) *Branch {
	return &Branch{ID: id, Force: force, matcher: matcher}
}

// WithCallback attaches a callback action and returns the branch for
// chaining at registration time.
func (b *Branch) WithCallback(cb Callback) *Branch {
	b.callback = cb
	return b
}

// WithBit attaches a bit id action: executing the branch runs that bit
// instead of a callback.
func (b *Branch) WithBit(id string) *Branch {
	b.bitID = id
	return b
}

// WithOnce marks the branch as single-shot; a scoped Path discards it
// after one successful, non-chaining match.
func (b *Branch) WithOnce() *Branch {
	b.Once = true
	return b
}

// Matches evaluates the branch's matcher and, on a match, appends a
// MatchedRecord to the State per the spec's side-effect contract.
func (b *Branch) Matches(msg *model.Message, st *state.State) (*MatchResult, error) {
	res, err := b.matcher.Match(msg, st)
	if err != nil {
		return nil, relerr.NewBranchError(b.ID, err)
	}
	if res != nil && res.Matched {
		st.AppendMatch(state.MatchedRecord{
			BranchID: b.ID,
			Match:    res.Match,
			Captured: res.Captured,
		})
	}
	return res, nil
}

// Execute runs the branch's action: the callback if one is set, or the
// bit runner for the bit id, or a warning-worthy no-op if neither was
// configured.
func (b *Branch) Execute(ctx context.Context, st *state.State, bits BitRunner) error {
	switch {
	case b.callback != nil:
		if err := b.callback(ctx, st); err != nil {
			return relerr.NewBranchError(b.ID, err)
		}
		return nil
	case b.bitID != "":
		if bits == nil {
			return relerr.NewBranchError(b.ID, fmt.Errorf("branch references bit %q but no bit runner is wired", b.bitID))
		}
		if err := bits.RunBit(ctx, b.bitID, st); err != nil {
			return relerr.NewBranchError(b.ID, err)
		}
		return nil
	default:
		return nil
	}
}
