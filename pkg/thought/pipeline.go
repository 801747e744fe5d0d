package thought

import (
	"context"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/path"
	"github.com/relaybot/relay/pkg/state"
)

// Receive drives a single message through the full stage pipeline and
// returns the final State. It is the sole entry point message adapters
// call (directly, or via Receiver.Receive).
func (o *Orchestrator) Receive(ctx context.Context, msg *model.Message) *state.State {
	st := state.New(msg, o.cfg.BotName, o.cfg.BotName)
	if o.adapters != nil {
		st.SetDispatcher(dispatchAdapter{
			inner:   o.adapters.Message(),
			breaker: o.dispatchBreaker,
			limiter: o.dispatchLimiter,
			timeout: o.cfg.RequestTimeout,
			logger:  o.logger,
		})
	}

	o.runHear(ctx, st)
	if st.Done() {
		return st
	}
	o.events.Emit(EventHear, st)

	switch {
	case msg.IsServer():
		o.runServe(ctx, msg, st)
	case msg.Kind == model.KindText, msg.Kind == model.KindEnter, msg.Kind == model.KindLeave, msg.Kind == model.KindTopic:
		o.runListen(ctx, msg, st)
		if !st.Done() {
			o.runUnderstand(ctx, msg, st)
		}
	}

	if !st.Done() && !st.HasMatched() && msg.Kind != model.KindCatchAll {
		o.runAct(ctx, msg, st)
	}

	if !st.Done() && len(st.Envelopes()) > 0 {
		o.runRespond(ctx, st)
	}

	if !st.Done() {
		o.runRemember(ctx, st)
	}

	return st
}

func (o *Orchestrator) runHear(ctx context.Context, st *state.State) {
	if err := o.st.hear.Run(ctx, st, nil); err != nil {
		o.logger.Error("hear middleware failed", "error", err)
	}
}

func (o *Orchestrator) runListen(ctx context.Context, msg *model.Message, st *state.State) {
	err := o.st.listen.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		o.evaluateStage(ctx, path.StageListen, msg, st)
		return nil
	})
	if err != nil {
		o.logger.Error("listen middleware failed", "error", err)
	}
}

func (o *Orchestrator) runUnderstand(ctx context.Context, msg *model.Message, st *state.State) {
	if msg.Kind != model.KindText {
		return
	}
	if len(msg.Text) < o.cfg.NLUMinLength {
		return
	}
	if st.HasMatched() {
		return
	}

	err := o.st.understand.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		if o.adapters != nil && o.adapters.NLU() != nil {
			result, err := o.processNLU(ctx, msg)
			if err != nil {
				o.logger.Error("nlu process failed", "error", err)
			} else {
				st.SetNLUResult(result)
			}
		}
		o.evaluateStage(ctx, path.StageUnderstand, msg, st)
		return nil
	})
	if err != nil {
		o.logger.Error("understand middleware failed", "error", err)
	}
}

// processNLU calls the NLU adapter bounded by requestTimeout, first
// consulting the rate limiter (if configured) so a bot that exceeds the
// configured calls-per-hour budget skips the call rather than risk
// exhausting the platform's own API limits.
func (o *Orchestrator) processNLU(ctx context.Context, msg *model.Message) (*model.NLUResult, error) {
	if o.nluLimiter != nil && !o.nluLimiter.Allow() {
		o.logger.Warn("nlu rate limited, skipping process call")
		return &model.NLUResult{}, nil
	}

	nlu := o.adapters.NLU()
	var result *model.NLUResult
	err := adapter.WithTimeout(ctx, o.cfg.RequestTimeout, func(ctx context.Context) error {
		r, err := nlu.Process(ctx, msg)
		result = r
		return err
	})
	return result, err
}

func (o *Orchestrator) runServe(ctx context.Context, msg *model.Message, st *state.State) {
	err := o.st.serve.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		o.evaluateStage(ctx, path.StageServe, msg, st)
		return nil
	})
	if err != nil {
		o.logger.Error("serve middleware failed", "error", err)
	}
}

func (o *Orchestrator) runAct(ctx context.Context, msg *model.Message, st *state.State) {
	wrapped := *msg
	wrapped.Kind = model.KindCatchAll
	err := o.st.act.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		o.evaluateStage(ctx, path.StageAct, &wrapped, st)
		return nil
	})
	if err != nil {
		o.logger.Error("act middleware failed", "error", err)
	}
}

func (o *Orchestrator) runRespond(ctx context.Context, st *state.State) {
	err := o.st.respond.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		o.events.Emit(EventRespond, st)
		return st.DispatchEnvelopes(ctx)
	})
	if err != nil {
		o.logger.Error("respond middleware failed", "error", err)
	}
}

func (o *Orchestrator) runRemember(ctx context.Context, st *state.State) {
	err := o.st.remember.Run(ctx, st, func(ctx context.Context, st *state.State) error {
		o.events.Emit(EventRemember, st)
		return o.persist(ctx, st)
	})
	if err != nil {
		o.logger.Error("remember middleware failed", "error", err)
	}
}

// persist stashes the user/room seen in this message into memory's
// reserved collections. Missing storage is tolerated here since not
// every bot configures persistence; StorageUnavailable only surfaces to
// callers that explicitly invoke Memory.Save/Load.
func (o *Orchestrator) persist(ctx context.Context, st *state.State) error {
	if o.mem == nil {
		return nil
	}
	msg := st.Message
	if msg == nil {
		return nil
	}
	if msg.User != nil {
		if err := o.mem.Set(msg.User.ID, msg.User, "users"); err != nil {
			return err
		}
	}
	if msg.Room != nil {
		if err := o.mem.Set(msg.Room.ID, msg.Room, "rooms"); err != nil {
			return err
		}
	}
	return nil
}
