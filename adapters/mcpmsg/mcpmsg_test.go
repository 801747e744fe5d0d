package mcpmsg

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/memory"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

type fakeReceiver struct {
	msgs []*model.Message
}

func (f *fakeReceiver) Receive(ctx context.Context, msg *model.Message) *state.State {
	f.msgs = append(f.msgs, msg)
	return nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestAdapter_HandleSendMessageRequiresText(t *testing.T) {
	a := New(nil, nil)
	a.SetReceiver(&fakeReceiver{})

	result, err := a.handleSendMessage(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAdapter_HandleSendMessageWithoutReceiverErrors(t *testing.T) {
	a := New(nil, nil)

	result, err := a.handleSendMessage(context.Background(), callRequest(map[string]any{"text": "hi"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAdapter_HandleSendMessageDeliversToReceiver(t *testing.T) {
	a := New(nil, nil)
	recv := &fakeReceiver{}
	a.SetReceiver(recv)

	result, err := a.handleSendMessage(context.Background(), callRequest(map[string]any{
		"text": "hello", "user_id": "u1", "room_id": "r1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, recv.msgs, 1)
	assert.Equal(t, "hello", recv.msgs[0].Text)
	assert.Equal(t, "u1", recv.msgs[0].User.ID)
}

func TestAdapter_HandleListRoomsWithNilMemoryReturnsEmptyArray(t *testing.T) {
	a := New(nil, nil)

	result, err := a.handleListRooms(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestAdapter_HandleListRoomsReadsRoomsCollection(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Set("r1", map[string]any{"name": "general"}, memory.CollectionRooms))

	a := New(mem, nil)
	result, err := a.handleListRooms(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestAdapter_DispatchLogsWithoutError(t *testing.T) {
	a := New(nil, nil)
	env := state.NewEnvelope("r1", "u1")
	assert.NoError(t, a.Dispatch(context.Background(), env))
}
