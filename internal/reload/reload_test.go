package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

func newTestState(text string) *state.State {
	msg := model.NewTextMessage("m1", text, model.NewUser("u1", "Ada"), model.NewRoom("r1", "general"))
	return state.New(msg, "bb", "bot-1")
}

func TestBitDef_ToBitWithTrigger(t *testing.T) {
	d := bitDef{ID: "greet", Send: "hi there", Scope: "room", Contains: []string{"hello"}}

	b, err := d.toBit()
	require.NoError(t, err)
	assert.Equal(t, "greet", b.ID)
	assert.Equal(t, bit.ScopeRoom, b.Scope)
	require.NotNil(t, b.TriggerCondition)

	res, err := b.TriggerCondition.Exec("hello there")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestBitDef_ToBitWithoutTriggerHasNilCondition(t *testing.T) {
	d := bitDef{ID: "x", Send: "ok"}

	b, err := d.toBit()
	require.NoError(t, err)
	assert.Nil(t, b.TriggerCondition)
	assert.Equal(t, bit.ScopeUser, b.Scope)
}

func TestWatcher_LoadAllRegistersBitsFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
[[bit]]
id = "greet"
send = "hello!"
scope = "user"
trigger_contains = ["hi"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.toml"), []byte(contents), 0o644))

	reg := bit.NewRegistry(nil)
	w, err := New(dir, reg, nil, 0)
	require.NoError(t, err)

	require.NoError(t, w.LoadAll())

	b, ok := reg.Get("greet")
	require.True(t, ok)
	assert.Equal(t, "hello!", b.Send)
}

func TestWatcher_LoadAllTreatsMissingDirAsEmpty(t *testing.T) {
	reg := bit.NewRegistry(nil)
	w, err := New(filepath.Join(t.TempDir(), "missing"), reg, nil, 0)
	require.NoError(t, err)
	assert.NoError(t, w.LoadAll())
}

func TestWatcher_StartIsInertWithEmptyDir(t *testing.T) {
	reg := bit.NewRegistry(nil)
	w, err := New("", reg, nil, 0)
	require.NoError(t, err)
	assert.NoError(t, w.Start())
}

func TestWatcher_PicksUpNewFileAfterStart(t *testing.T) {
	dir := t.TempDir()
	reg := bit.NewRegistry(nil)
	w, err := New(dir, reg, nil, 20)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	contents := `
[[bit]]
id = "later"
send = "reloaded"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "later.toml"), []byte(contents), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Get("later"); ok {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	b, ok := reg.Get("later")
	require.True(t, ok)
	assert.Equal(t, "reloaded", b.Send)

	st := newTestState("anything")
	require.NoError(t, reg.RunBit(context.Background(), "later", st))
}
