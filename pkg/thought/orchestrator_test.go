package thought

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/expr"
	"github.com/relaybot/relay/pkg/memory"
	"github.com/relaybot/relay/pkg/middleware"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/path"
	"github.com/relaybot/relay/pkg/state"
)

func textMsg(text string) *model.Message {
	return model.NewTextMessage("m1", text, model.NewUser("u1", "Ada"), model.NewRoom("r1", "general"))
}

func newOrchestrator() *Orchestrator {
	return New(Config{BotName: "bb", NLUMinLength: 3}, nil, nil, nil, nil, nil)
}

func TestOrchestrator_ReceiveMatchesTextBranch(t *testing.T) {
	o := newOrchestrator()
	cond, err := expr.New(expr.Contains("hello"))
	require.NoError(t, err)
	o.Global().Text(path.StageListen, "greet", false, cond).WithCallback(func(ctx context.Context, st *state.State) error {
		st.Respond("hi there")
		return nil
	})

	st := o.Receive(context.Background(), textMsg("hello bot"))

	require.True(t, st.HasMatched())
	require.Len(t, st.Envelopes(), 1)
	assert.Equal(t, "hi there", st.Envelopes()[0].Text())
}

func TestOrchestrator_ReceiveFallsBackToCatchAll(t *testing.T) {
	o := newOrchestrator()
	o.Global().CatchAll("fallback", false).WithCallback(func(ctx context.Context, st *state.State) error {
		st.Respond("say again?")
		return nil
	})

	st := o.Receive(context.Background(), textMsg("gibberish that matches nothing"))

	require.True(t, st.HasMatched())
	require.Len(t, st.Envelopes(), 1)
	assert.Equal(t, "say again?", st.Envelopes()[0].Text())
}

func TestOrchestrator_ReceiveNoMatchLeavesStateUnmatched(t *testing.T) {
	o := newOrchestrator()
	st := o.Receive(context.Background(), textMsg("nothing registered"))
	assert.False(t, st.HasMatched())
	assert.Empty(t, st.Envelopes())
}

func TestOrchestrator_HearDoneShortCircuitsPipeline(t *testing.T) {
	o := newOrchestrator()
	o.Global().CatchAll("fallback", false).WithCallback(func(ctx context.Context, st *state.State) error {
		st.Respond("should not run")
		return nil
	})
	require.NoError(t, o.Use("hear", func(ctx context.Context, st *state.State, next middleware.NextFunc, done middleware.DoneFunc) error {
		st.SetDone()
		done()
		return nil
	}))

	st := o.Receive(context.Background(), textMsg("hello"))

	assert.True(t, st.Done())
	assert.Empty(t, st.Envelopes())
}

func TestOrchestrator_UseUnknownStageErrors(t *testing.T) {
	o := newOrchestrator()
	err := o.Use("nonexistent", func(ctx context.Context, st *state.State, next middleware.NextFunc, done middleware.DoneFunc) error {
		return nil
	})
	assert.Error(t, err)
}

func TestOrchestrator_ReceivePersistsUserAndRoomToMemory(t *testing.T) {
	mem := memory.New()
	o := New(Config{BotName: "bb", NLUMinLength: 3}, nil, nil, mem, nil, nil)
	o.Global().CatchAll("fallback", false)

	o.Receive(context.Background(), textMsg("hello"))

	stored, ok := mem.Get("u1", memory.CollectionUsers)
	require.True(t, ok)
	user, ok := stored.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", user["DisplayName"])
}

func TestOrchestrator_ReceiveEmitsMatchAndNoMatchEvents(t *testing.T) {
	o := newOrchestrator()
	cond, err := expr.New(expr.Contains("hi"))
	require.NoError(t, err)
	o.Global().Text(path.StageListen, "greet", false, cond)

	var fired []EventName
	o.Events().On(EventMatch, func(st *state.State) { fired = append(fired, EventMatch) })
	o.Events().On(EventNoMatch, func(st *state.State) { fired = append(fired, EventNoMatch) })

	o.Receive(context.Background(), textMsg("hi there"))
	o.Receive(context.Background(), textMsg("unrelated"))

	assert.Contains(t, fired, EventMatch)
	assert.Contains(t, fired, EventNoMatch)
}

func TestOrchestrator_RunBitChainsSceneForNextMessage(t *testing.T) {
	bits := bit.NewRegistry(nil)
	confirmCond, err := expr.New(expr.Is("yes"))
	require.NoError(t, err)
	bits.Register(&bit.Bit{ID: "confirm", Send: "confirmed!", Scope: bit.ScopeUser, TriggerCondition: confirmCond})
	bits.Register(&bit.Bit{ID: "ask", Send: "are you sure?", Next: []string{"confirm"}, Scope: bit.ScopeUser})

	o := New(Config{BotName: "bb", NLUMinLength: 3}, nil, nil, nil, bits, nil)
	o.Global().Text(path.StageListen, "ask-trigger", false, mustCondition(t, expr.Is("start"))).
		WithCallback(func(ctx context.Context, st *state.State) error {
			return o.RunBit(ctx, "ask", st)
		})

	first := o.Receive(context.Background(), textMsg("start"))
	require.True(t, first.HasMatched())
	require.Len(t, first.Envelopes(), 1)
	assert.Equal(t, "are you sure?", first.Envelopes()[0].Text())

	second := o.Receive(context.Background(), textMsg("yes"))
	require.True(t, second.HasMatched())
	require.Len(t, second.Envelopes(), 1)
	assert.Equal(t, "confirmed!", second.Envelopes()[0].Text())
}

func mustCondition(t *testing.T, c *expr.Condition) *expr.Conditions {
	t.Helper()
	cond, err := expr.New(c)
	require.NoError(t, err)
	return cond
}

func TestOrchestrator_ReceiveDispatchesEnvelopeToMessageAdapter(t *testing.T) {
	registry := adapter.NewRegistry()
	registry.RegisterFactory("fake", func(fc adapter.FactoryContext) (adapter.Adapter, error) {
		return &fakeDispatchAdapter{}, nil
	})
	require.NoError(t, registry.Load(adapter.SlotMessage, "fake", adapter.FactoryContext{}))
	fake := registry.Message().(*fakeDispatchAdapter)

	o := New(Config{BotName: "bb", NLUMinLength: 3}, nil, registry, nil, nil, nil)
	o.Global().CatchAll("fallback", false).WithCallback(func(ctx context.Context, st *state.State) error {
		st.Respond("dispatched")
		return nil
	})

	o.Receive(context.Background(), textMsg("hello"))

	require.Len(t, fake.dispatched, 1)
	assert.Equal(t, "dispatched", fake.dispatched[0].Text())
}

type fakeDispatchAdapter struct {
	dispatched []*state.Envelope
}

func (f *fakeDispatchAdapter) Name() string                      { return "fake" }
func (f *fakeDispatchAdapter) SetReceiver(r adapter.Receiver)     {}
func (f *fakeDispatchAdapter) Start(ctx context.Context) error    { return nil }
func (f *fakeDispatchAdapter) Shutdown(ctx context.Context) error { return nil }
func (f *fakeDispatchAdapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	f.dispatched = append(f.dispatched, env)
	return nil
}
