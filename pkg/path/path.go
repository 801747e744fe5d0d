// Package path groups branches into named, per-stage collections that the
// thought process orchestrator consults when it evaluates listen,
// understand, serve and act.
package path

import (
	"sync"

	"github.com/relaybot/relay/pkg/branch"
	"github.com/relaybot/relay/pkg/expr"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// Stage names one of the branch-bearing orchestrator stages.
type Stage string

const (
	StageListen     Stage = "listen"
	StageUnderstand Stage = "understand"
	StageServe      Stage = "serve"
	StageAct        Stage = "act"
)

// GlobalScope is the scope name of the process-wide Path; scene Paths
// created for scoped dialogues use a different scope string.
const GlobalScope = "global"

// Path is an ordered, per-stage collection of branches. The zero value
// is not usable; construct with New.
type Path struct {
	mu    sync.RWMutex
	Scope string

	order map[Stage][]string
	byID  map[Stage]map[string]*branch.Branch
}

// New creates an empty Path under the given scope name.
func New(scope string) *Path {
	if scope == "" {
		scope = GlobalScope
	}
	p := &Path{
		Scope: scope,
		order: make(map[Stage][]string),
		byID:  make(map[Stage]map[string]*branch.Branch),
	}
	for _, s := range []Stage{StageListen, StageUnderstand, StageServe, StageAct} {
		p.order[s] = nil
		p.byID[s] = make(map[string]*branch.Branch)
	}
	return p
}

// Add inserts a branch into a stage's collection, returning its id.
// Registering a duplicate id replaces the prior branch in place,
// preserving its position in registration order.
func (p *Path) Add(stg Stage, b *branch.Branch) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[stg][b.ID]; !exists {
		p.order[stg] = append(p.order[stg], b.ID)
	}
	p.byID[stg][b.ID] = b
	return b.ID
}

// Branches returns the branches registered for a stage in registration
// order.
func (p *Path) Branches(stg Stage) []*branch.Branch {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*branch.Branch, 0, len(p.order[stg]))
	for _, id := range p.order[stg] {
		if b, ok := p.byID[stg][id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Reset empties the listen/understand/act collections; serve is
// preserved since server-originated events are not subject to scene
// scoping the way chat stages are.
func (p *Path) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range []Stage{StageListen, StageUnderstand, StageAct} {
		p.order[s] = nil
		p.byID[s] = make(map[string]*branch.Branch)
	}
}

// Forced removes every branch without Force set from a stage's
// collection and returns the number remaining.
func (p *Path) Forced(stg Stage) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.order[stg][:0]
	for _, id := range p.order[stg] {
		b := p.byID[stg][id]
		if b != nil && b.Force {
			kept = append(kept, id)
			continue
		}
		delete(p.byID[stg], id)
	}
	p.order[stg] = kept
	return len(kept)
}

// Candidate is one branch's match outcome surfaced by Candidates without
// running its action, used for introspection and tracing.
type Candidate struct {
	Branch *branch.Branch
	Result *branch.MatchResult
}

// Candidates evaluates every branch registered for a stage against a
// message/state pair and returns those that matched, in registration
// order. It does not execute any branch. It evaluates through
// Branch.Matches, so each match is also appended to State.Matched; it is
// not read-only with respect to State. The scan is the same
// registration-order scan the orchestrator itself performs.
func (p *Path) Candidates(stg Stage, msg *model.Message, st *state.State) ([]Candidate, error) {
	branches := p.Branches(stg)
	var out []Candidate
	for _, b := range branches {
		res, err := b.Matches(msg, st)
		if err != nil {
			return out, err
		}
		if res != nil && res.Matched {
			out = append(out, Candidate{Branch: b, Result: res})
		}
	}
	return out, nil
}

// ForcedBranches returns only the force-flagged branches of a stage
// without mutating the Path, unlike Forced which prunes in place. The
// orchestrator uses this to narrow attention to forced global branches
// while a scoped scene is active, without permanently discarding the
// rest of the global Path's registrations.
func (p *Path) ForcedBranches(stg Stage) []*branch.Branch {
	all := p.Branches(stg)
	out := make([]*branch.Branch, 0, len(all))
	for _, b := range all {
		if b.Force {
			out = append(out, b)
		}
	}
	return out
}

// Text registers a TextBranch on stage stg.
func (p *Path) Text(stg Stage, id string, force bool, conditions *expr.Conditions) *branch.Branch {
	b := branch.NewTextBranch(id, force, conditions)
	p.Add(stg, b)
	return b
}

// Direct registers a TextDirectBranch on stage stg.
func (p *Path) Direct(stg Stage, id string, force bool, conditions *expr.Conditions, aliases ...string) *branch.Branch {
	b := branch.NewTextDirectBranch(id, force, conditions, aliases...)
	p.Add(stg, b)
	return b
}

// NaturalLanguage registers a NaturalLanguageBranch, always on the
// understand stage per the orchestrator's stage table.
func (p *Path) NaturalLanguage(id string, force bool, criteria branch.NLUCriteria) *branch.Branch {
	b := branch.NewNaturalLanguageBranch(id, force, criteria)
	p.Add(StageUnderstand, b)
	return b
}

// NaturalLanguageDirect registers a NaturalLanguageDirectBranch on the
// understand stage.
func (p *Path) NaturalLanguageDirect(id string, force bool, criteria branch.NLUCriteria, aliases ...string) *branch.Branch {
	b := branch.NewNaturalLanguageDirectBranch(id, force, criteria, aliases...)
	p.Add(StageUnderstand, b)
	return b
}

// Server registers a ServerBranch on the serve stage.
func (p *Path) Server(id string, force bool, event string, criteria map[string]any) *branch.Branch {
	b := branch.NewServerBranch(id, force, event, criteria)
	p.Add(StageServe, b)
	return b
}

// Custom registers a CustomBranch on stage stg.
func (p *Path) Custom(stg Stage, id string, force bool, predicate branch.CustomPredicate) *branch.Branch {
	b := branch.NewCustomBranch(id, force, predicate)
	p.Add(stg, b)
	return b
}

// CatchAll registers a CatchAllBranch, always on the act stage.
func (p *Path) CatchAll(id string, force bool) *branch.Branch {
	b := branch.NewCatchAllBranch(id, force)
	p.Add(StageAct, b)
	return b
}
