// Package mcp exposes the bridge sessions to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mbocsi/nativebridge/services"
)

type MCPServer struct {
	Server  *server.MCPServer
	service *services.BridgeService
}

func NewMCPServer(service *services.BridgeService) *MCPServer {
	s := &MCPServer{
		Server:  server.NewMCPServer("Native Bridge", "1.0.0", server.WithToolCapabilities(false)),
		service: service,
	}
	s.registerTools()
	return s
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}

func (s *MCPServer) registerTools() {
	listSessionsTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List the embedded documents currently connected to the bridge"),
	)
	s.Server.AddTool(listSessionsTool, s.handleListSessions)

	listTopicsTool := mcp.NewTool("list_topics",
		mcp.WithDescription("List the topics the host handles for connected documents"),
	)
	s.Server.AddTool(listTopicsTool, s.handleListTopics)

	sendMessageTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a message on a topic to one connected document, or to all of them"),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Topic the document listens on"),
		),
		mcp.WithString("session",
			mcp.Description("Session id; omit to broadcast to every session"),
		),
		mcp.WithObject("payload",
			mcp.Description("Data member of the envelope"),
		),
	)
	s.Server.AddTool(sendMessageTool, s.handleSendMessage)
}

func (s *MCPServer) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.service.ListSessions())
}

func (s *MCPServer) handleListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.service.ListTopics())
}

func (s *MCPServer) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := request.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError("topic is required and must be a string"), nil
	}

	req := services.MessageRequest{
		SessionID: request.GetString("session", ""),
		Topic:     topic,
	}

	if args, ok := request.GetRawArguments().(map[string]any); ok {
		if payload, exists := args["payload"]; exists {
			data, err := json.Marshal(payload)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal payload: %v", err)), nil
			}
			req.Data = data
		}
	}

	sent, err := s.service.SendMessage(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message sent on topic %s to %d session(s)", topic, sent)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
