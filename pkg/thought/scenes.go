package thought

import (
	"context"
	"time"

	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/branch"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/path"
	"github.com/relaybot/relay/pkg/state"
)

func sceneKey(msg *model.Message, scope bit.Scope) string {
	var userKey, roomKey string
	if msg.User != nil {
		userKey = "user:" + msg.User.ID
	}
	if msg.Room != nil {
		roomKey = "room:" + msg.Room.ID
	}
	switch scope {
	case bit.ScopeRoom:
		return roomKey
	case bit.ScopeBoth:
		return userKey + "|" + roomKey
	default:
		return userKey
	}
}

func defaultSceneKey(msg *model.Message) string {
	return sceneKey(msg, bit.ScopeUser)
}

// chainScene registers an ephemeral scene Path for a bit's Next ids, so
// the next message from the same user/room is checked against those
// continuations before the global Path. Call this from a bit callback
// after the bit itself has run.
func (o *Orchestrator) chainScene(parent *bit.Bit, st *state.State) {
	if parent == nil || len(parent.Next) == 0 || o.bits == nil {
		return
	}
	msg := st.Message
	if msg == nil {
		return
	}

	scenePath := path.New("scene")
	for _, nextID := range parent.Next {
		nextBit, ok := o.bits.Get(nextID)
		if !ok || nextBit.TriggerCondition == nil {
			continue
		}
		captured := nextBit
		scenePath.Text(path.StageListen, captured.ID, false, captured.TriggerCondition).
			WithCallback(func(ctx context.Context, st *state.State) error {
				return o.RunBit(ctx, captured.ID, st)
			})
	}

	key := sceneKey(msg, parent.Scope)
	if key == "" {
		return
	}
	o.mu.Lock()
	o.scenes[key] = &sceneEntry{p: scenePath, expires: time.Now().Add(o.cfg.SceneTimeout)}
	o.mu.Unlock()
}

// RunBit runs a bit by id and, if it chains into further bits via Next,
// registers the continuation scene. It implements branch.BitRunner so
// branches executing a bit action go through the same chaining path
// bits reached via scenes do.
func (o *Orchestrator) RunBit(ctx context.Context, id string, st *state.State) error {
	if o.bits == nil {
		return nil
	}
	b, ok := o.bits.Get(id)
	if !ok {
		return o.bits.Run(ctx, id, st)
	}
	if err := o.bits.Run(ctx, id, st); err != nil {
		return err
	}
	o.chainScene(b, st)
	return nil
}

// discardScene removes the scoped Path for a message's scene key, used
// once a scene branch matches without chaining further.
func (o *Orchestrator) discardScene(msg *model.Message) {
	key := defaultSceneKey(msg)
	o.mu.Lock()
	delete(o.scenes, key)
	o.mu.Unlock()
}

func (o *Orchestrator) activeScene(msg *model.Message) *path.Path {
	key := defaultSceneKey(msg)
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.scenes[key]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expires) {
		delete(o.scenes, key)
		return nil
	}
	return entry.p
}

// evaluateStage runs the registration-order, first-match-wins algorithm
// for one stage, consulting an active scene Path before the global Path
// and narrowing the global Path to forced branches only when the scene
// itself has forced branches pending for this stage.
func (o *Orchestrator) evaluateStage(ctx context.Context, stg path.Stage, msg *model.Message, st *state.State) {
	matched := false
	scene := o.activeScene(msg)

	if scene != nil {
		if o.evaluateBranchList(ctx, scene.Branches(stg), msg, st, false) {
			matched = true
			o.discardScene(msg)
		}
	}

	globalBranches := o.global.Branches(stg)
	if scene != nil && len(scene.ForcedBranches(stg)) > 0 {
		globalBranches = o.global.ForcedBranches(stg)
	}
	if o.evaluateBranchList(ctx, globalBranches, msg, st, matched) {
		matched = true
	}

	if matched {
		o.events.Emit(EventMatch, st)
		switch stg {
		case path.StageListen:
			o.events.Emit(EventListen, st)
		case path.StageUnderstand:
			o.events.Emit(EventUnderstand, st)
		}
	} else {
		o.events.Emit(EventNoMatch, st)
	}
}

// evaluateBranchList runs the per-branch matches/execute loop over one
// ordered branch slice. alreadyMatched seeds the first-match-wins state
// so a caller can chain multiple branch lists (scene then global) while
// still honouring "first registered branch wins" within the combined
// evaluation.
func (o *Orchestrator) evaluateBranchList(ctx context.Context, branches []*branch.Branch, msg *model.Message, st *state.State, alreadyMatched bool) bool {
	matched := alreadyMatched
	for _, b := range branches {
		if matched && !b.Force {
			continue
		}
		res, err := b.Matches(msg, st)
		if err != nil {
			o.logger.Error("branch match failed", "branch", b.ID, "error", err)
			continue
		}
		if res == nil || !res.Matched {
			continue
		}
		matched = true
		if err := b.Execute(ctx, st, o); err != nil {
			o.logger.Error("branch execute failed", "branch", b.ID, "error", err)
		}
	}
	return matched
}
