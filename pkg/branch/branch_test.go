package branch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/expr"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

func newTestState(text string) *state.State {
	msg := model.NewTextMessage("m1", text, model.NewUser("u1", "Ada"), model.NewRoom("r1", "general"))
	return state.New(msg, "bb", "bot-1")
}

func TestTextBranch_MatchesAndRecords(t *testing.T) {
	cond, err := expr.New(expr.Is("hello"))
	require.NoError(t, err)

	b := NewTextBranch("b1", false, cond)
	st := newTestState("hello")

	res, err := b.Matches(st.Message, st)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Len(t, st.Matched(), 1)
	assert.Equal(t, "b1", st.Matched()[0].BranchID)
}

func TestTextBranch_NoMatchNoRecord(t *testing.T) {
	cond, err := expr.New(expr.Is("hello"))
	require.NoError(t, err)

	b := NewTextBranch("b1", false, cond)
	st := newTestState("goodbye")

	res, err := b.Matches(st.Message, st)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, st.Matched())
}

func TestTextDirectBranch_RequiresName(t *testing.T) {
	cond, err := expr.New(expr.Is("hello"))
	require.NoError(t, err)

	b := NewTextDirectBranch("b1", false, cond)
	st := newTestState("hello")

	res, err := b.Matches(st.Message, st)
	require.NoError(t, err)
	assert.False(t, res.Matched)

	st2 := newTestState("bb hello")
	res2, err := b.Matches(st2.Message, st2)
	require.NoError(t, err)
	assert.True(t, res2.Matched)
}

func TestBranch_ExecuteRunsCallback(t *testing.T) {
	cond, err := expr.New(expr.Is("hello"))
	require.NoError(t, err)

	called := false
	b := NewTextBranch("b1", false, cond).WithCallback(func(ctx context.Context, st *state.State) error {
		called = true
		return nil
	})

	st := newTestState("hello")
	require.NoError(t, b.Execute(context.Background(), st, nil))
	assert.True(t, called)
}

func TestCatchAllBranch_OnlyMatchesWhenNothingElseDid(t *testing.T) {
	b := NewCatchAllBranch("fallback", false)
	st := newTestState("anything")

	res, err := b.Matches(st.Message, st)
	require.NoError(t, err)
	assert.True(t, res.Matched)

	st.AppendMatch(state.MatchedRecord{BranchID: "earlier"})
	res2, err := b.Matches(st.Message, st)
	require.NoError(t, err)
	assert.False(t, res2.Matched)
}
