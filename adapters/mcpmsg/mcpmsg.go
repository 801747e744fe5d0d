// Package mcpmsg wraps a Relay bot as an MCP server, grounded on the
// teacher's index/mcp_server.go tool registration shape, exposing
// send_message and list_rooms tools so an MCP-speaking client can act as
// a chat-platform adapter without a dedicated wire protocol.
package mcpmsg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/memory"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// Adapter is an MCP-server-backed MessageAdapter: its inbound direction is
// the send_message tool calling into the orchestrator via Receiver, and
// its outbound Dispatch just logs, since MCP tool calls are request-scoped
// and have no independent push channel back to the caller.
type Adapter struct {
	logger   *slog.Logger
	mem      *memory.Memory
	receiver adapter.Receiver
	mcp      *server.MCPServer
}

// New constructs an Adapter. mem may be nil, in which case list_rooms
// always returns an empty list.
func New(mem *memory.Memory, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{logger: logger, mem: mem}
	a.mcp = server.NewMCPServer("relay", "1.0.0", server.WithToolCapabilities(true))
	a.registerTools()
	return a
}

// Factory adapts New to adapter.Factory. The bit/memory wiring for a
// factory-resolved instance happens through fc.Settings in a real
// deployment config layer; mem is left nil here since FactoryContext
// carries only string settings, matching the registry's string-keyed
// resolution contract.
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	return New(nil, fc.Logger), nil
}

func (a *Adapter) registerTools() {
	a.mcp.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Deliver a message into the bot's thought process as if received from a chat platform."),
			mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
			mcp.WithString("user_id", mcp.Description("Sending user id")),
			mcp.WithString("room_id", mcp.Description("Room id")),
		),
		a.handleSendMessage,
	)

	a.mcp.AddTool(
		mcp.NewTool("list_rooms",
			mcp.WithDescription("List rooms the bot has seen, read from its rooms memory collection."),
		),
		a.handleListRooms,
	)
}

func (a *Adapter) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text parameter is required"), nil
	}
	if a.receiver == nil {
		return mcp.NewToolResultError("no receiver registered"), nil
	}

	userID := request.GetString("user_id", "mcp-user")
	roomID := request.GetString("room_id", "mcp-room")
	user := model.NewUser(userID, userID)
	user.RoomID = roomID
	room := model.NewRoom(roomID, roomID)
	msg := model.NewTextMessage(uuid.NewString(), text, user, room)

	a.receiver.Receive(ctx, msg)
	return mcp.NewToolResultText("message delivered"), nil
}

func (a *Adapter) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if a.mem == nil {
		return mcp.NewToolResultText("[]"), nil
	}
	rooms := a.mem.ToObject()[memory.CollectionRooms]
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal rooms failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (a *Adapter) Name() string { return "mcpmsg" }

func (a *Adapter) SetReceiver(r adapter.Receiver) { a.receiver = r }

// Start serves the MCP server over stdio, matching the teacher's
// ServeStdio entry point, run in its own goroutine so Start can return.
func (a *Adapter) Start(ctx context.Context) error {
	go func() {
		if err := server.ServeStdio(a.mcp); err != nil {
			a.logger.Error("mcpmsg: serve stdio failed", "error", err)
		}
	}()
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

// Dispatch logs the envelope; MCP tool calls are request/response, so
// there is no independent channel to push outbound envelopes back to a
// caller outside of a tool's own return value.
func (a *Adapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	a.logger.Info("mcpmsg: dispatch", "room", env.RoomID, "user", env.UserID, "text", env.Text(), "payload", env.Payload())
	return nil
}
